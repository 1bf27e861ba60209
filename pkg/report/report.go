// Package report renders a ChangeSet as a human-readable diff.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/bkero/unifi-dns-sync/pkg/plan"
)

const rule = "============================================================"

// Render returns the diff for cs. Groups appear in the order deleted,
// created, unchanged; entries within a group are sorted and empty groups are
// omitted. The last line summarises created + deleted.
func Render(cs *plan.ChangeSet, targetIP string) string {
	if cs == nil {
		cs = &plan.ChangeSet{}
	}
	created := sorted(cs.Create)
	deleted := cs.DeleteHostnames()
	unchanged := sorted(cs.Unchanged)

	var b strings.Builder
	b.WriteString(rule + "\nDNS RECORD CHANGES\n" + rule + "\n")

	group(&b, "DELETED", "  - ", deleted, targetIP)
	group(&b, "CREATED", "  + ", created, targetIP)
	group(&b, "UNCHANGED", "    ", unchanged, targetIP)

	b.WriteString("\n" + rule + "\n")
	fmt.Fprintf(&b, "SUMMARY: %d changes (%d created, %d deleted)\n",
		len(created)+len(deleted), len(created), len(deleted))
	b.WriteString(rule + "\n")
	return b.String()
}

// Write renders cs to w.
func Write(w io.Writer, cs *plan.ChangeSet, targetIP string) error {
	_, err := io.WriteString(w, Render(cs, targetIP))
	return err
}

func group(b *strings.Builder, title, marker string, hosts []string, targetIP string) {
	if len(hosts) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s (%d records):\n", title, len(hosts))
	for _, h := range hosts {
		fmt.Fprintf(b, "%s%s -> %s\n", marker, h, targetIP)
	}
}

func sorted(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
