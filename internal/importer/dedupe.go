package importer

import "github.com/aanand-mishra/student-base/internal/types"

// Dedupe drops later rows that repeat the CPF of an earlier domestic row
// or the email of an earlier foreign row. Order is preserved and the
// first occurrence always wins.
func Dedupe(valid []types.Student) []types.Student {
	seenCPF := make(map[string]struct{})
	seenEmail := make(map[string]struct{})
	out := make([]types.Student, 0, len(valid))

	for _, s := range valid {
		switch {
		case !s.IsForeign && s.CPF != nil:
			if _, dup := seenCPF[*s.CPF]; dup {
				continue
			}
			seenCPF[*s.CPF] = struct{}{}
		case s.IsForeign && s.Email != nil:
			if _, dup := seenEmail[*s.Email]; dup {
				continue
			}
			seenEmail[*s.Email] = struct{}{}
		}
		out = append(out, s)
	}
	return out
}

// Partition splits students into domestic and foreign batches.
func Partition(students []types.Student) (domestic, foreign []types.Student) {
	for _, s := range students {
		if s.IsForeign {
			foreign = append(foreign, s)
		} else {
			domestic = append(domestic, s)
		}
	}
	return domestic, foreign
}

// FilterExisting removes students whose identifier is in existing.
func FilterExisting(students []types.Student, existing map[string]struct{}) []types.Student {
	out := make([]types.Student, 0, len(students))
	for _, s := range students {
		if _, ok := existing[s.Identifier()]; ok {
			continue
		}
		out = append(out, s)
	}
	return out
}

// identifiers collects the governing identifier of each student.
func identifiers(students []types.Student) []string {
	ids := make([]string, 0, len(students))
	for _, s := range students {
		if id := s.Identifier(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
