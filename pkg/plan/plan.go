package plan

import (
	"sort"

	"github.com/bkero/unifi-dns-sync/pkg/record"
)

// Calculate diffs the desired hostnames against the records currently on the
// controller and returns the ChangeSet needed to converge:
//
//	Create    = desired - existing
//	Delete    = existing - desired
//	Unchanged = desired ∩ existing
//
// Only A records are considered; records of any other type are ignored and
// never scheduled for deletion. Each group is sorted so that apply order and
// log output are stable across runs.
func Calculate(desired []string, existing []*record.Record) *ChangeSet {
	want := make(map[string]struct{}, len(desired))
	for _, h := range desired {
		want[h] = struct{}{}
	}
	have := indexRecords(existing)

	cs := &ChangeSet{
		Create:    []string{},
		Delete:    []Deletion{},
		Unchanged: []string{},
	}
	for h := range want {
		if _, ok := have[h]; ok {
			cs.Unchanged = append(cs.Unchanged, h)
		} else {
			cs.Create = append(cs.Create, h)
		}
	}
	for h, r := range have {
		if _, ok := want[h]; ok {
			continue
		}
		cs.Delete = append(cs.Delete, Deletion{Hostname: h, ID: r.ID})
	}

	sort.Strings(cs.Create)
	sort.Strings(cs.Unchanged)
	sort.Slice(cs.Delete, func(i, j int) bool {
		return cs.Delete[i].Hostname < cs.Delete[j].Hostname
	})
	return cs
}

// indexRecords builds a map from hostname to A record.
// If the controller returns duplicate keys the last one wins.
func indexRecords(recs []*record.Record) map[string]*record.Record {
	idx := make(map[string]*record.Record, len(recs))
	for _, r := range recs {
		if r == nil || !r.IsA() {
			continue
		}
		idx[r.Key] = r
	}
	return idx
}
