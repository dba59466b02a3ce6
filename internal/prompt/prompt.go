// Package prompt builds the instruction text sent to the generation service.
package prompt

import (
	"fmt"
	"strings"

	"zproposal/internal/codec"
	"zproposal/internal/documents"
)

const preamble = "You are an expert proposal writer. Using the documents provided below, " +
	"write a comprehensive, well-structured proposal that responds to the customer's " +
	"requirements and showcases our capabilities."

const guidance = `How to use each document type:
- Business Capability documents describe our company's capabilities, experience, and approach. Use them to shape the proposed solution and approach.
- Proposal Template documents define the expected structure and format. Follow their sections, headings, and style.
- RFI/RFP documents contain the customer's questions and requirements. Respond to each requirement point by point.`

// Assemble returns the prompt for records, in the order given. It is a pure
// function of its input. Callers reject an empty selection before calling;
// with no records the result still carries the preamble and guidance.
func Assemble(records []documents.Record) string {
	var b strings.Builder

	b.WriteString(preamble)
	b.WriteString("\n\nSelected documents:\n")
	for _, r := range records {
		fmt.Fprintf(&b, "- %s (%s)\n", r.Name, r.Category.Label())
	}

	b.WriteString("\n")
	b.WriteString(guidance)
	b.WriteString("\n")

	for i, r := range records {
		fmt.Fprintf(&b, "\n=== Document %d: %s ===\n", i+1, r.Name)
		fmt.Fprintf(&b, "Type: %s\n", r.Category.Label())
		b.WriteString("Content:\n")
		b.WriteString(codec.DecodeToDisplayText(r.Data))
		b.WriteString("\n")
	}

	return b.String()
}
