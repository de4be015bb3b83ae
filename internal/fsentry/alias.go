package fsentry

import "sort"

// Instance is a single logical file together with every path that
// resolved to it. Entries is sorted by path; Entries[0] is the primary
// path used in reports and criteria evaluation.
type Instance struct {
	Entries []*Entry
}

// Primary returns the lexicographically first entry.
func (in *Instance) Primary() *Entry {
	return in.Entries[0]
}

// Size returns the common size of the instance's entries.
func (in *Instance) Size() int64 {
	return in.Entries[0].Size
}

// NameCount returns how many paths name this instance.
func (in *Instance) NameCount() int {
	return len(in.Entries)
}

// FoldAliases merges entries sharing filesystem identity into single
// instances. Entries without an identity never merge. With fold set
// to false every entry becomes its own instance and hardlinked copies
// compare (and report) like any other duplicate.
//
// Folding is idempotent: folding the output again yields the same
// instances.
func FoldAliases(entries []*Entry, fold bool) []*Instance {
	instances := make([]*Instance, 0, len(entries))

	if !fold {
		for _, e := range entries {
			instances = append(instances, &Instance{Entries: []*Entry{e}})
		}
		return sortInstances(instances)
	}

	byIdentity := make(map[Identity]*Instance)
	for _, e := range entries {
		id, ok := e.Identity()
		if !ok {
			instances = append(instances, &Instance{Entries: []*Entry{e}})
			continue
		}
		if inst, seen := byIdentity[id]; seen {
			inst.Entries = append(inst.Entries, e)
			continue
		}
		inst := &Instance{Entries: []*Entry{e}}
		byIdentity[id] = inst
		instances = append(instances, inst)
	}

	return sortInstances(instances)
}

// sortInstances orders each instance's aliases by path and the
// instances themselves by primary path, for deterministic reports.
func sortInstances(instances []*Instance) []*Instance {
	for _, inst := range instances {
		sort.Slice(inst.Entries, func(i, j int) bool {
			return inst.Entries[i].Path < inst.Entries[j].Path
		})
	}
	sort.Slice(instances, func(i, j int) bool {
		return instances[i].Primary().Path < instances[j].Primary().Path
	})
	return instances
}
