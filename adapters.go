package main

import (
	"context"

	"zproposal/internal/documents"
	"zproposal/internal/workspace"
)

// watcherUploaderAdapter adapts workspace.Workspace to watcher.Uploader
type watcherUploaderAdapter struct {
	workspace *workspace.Workspace
}

func (a *watcherUploaderAdapter) Upload(ctx context.Context, name string, category documents.Category, content []byte) error {
	_, err := a.workspace.Upload(ctx, workspace.UploadRequest{
		Name:     name,
		Category: string(category),
		Content:  content,
	})
	return err
}
