package notifier

import (
	"context"
	"fmt"
	"io"
)

// DryRunNotifier prints the email that would be sent without sending it
type DryRunNotifier struct {
	email *EmailNotifier
	out   io.Writer
}

// NewDryRunNotifier creates a new dry-run notifier
func NewDryRunNotifier(email *EmailNotifier, out io.Writer) *DryRunNotifier {
	return &DryRunNotifier{email: email, out: out}
}

// Notify prints the composed message
func (n *DryRunNotifier) Notify(ctx context.Context, items []string) error {
	e := n.email.Compose(items)

	fmt.Fprintf(n.out, "--- Email (dry run) ---\n")
	fmt.Fprintf(n.out, "From: %s\n", e.From)
	fmt.Fprintf(n.out, "To: %s\n", e.To[0])
	fmt.Fprintf(n.out, "Subject: %s\n\n", e.Subject)
	fmt.Fprintf(n.out, "%s", e.Text)
	fmt.Fprintf(n.out, "--- %d item(s) ---\n", len(items))
	return nil
}
