package dataset

// Stats summarizes a dataset.
type Stats struct {
	Rows      int
	Positives int
	Negatives int
	Repos     int
	Methods   int
}

// Summarize counts rows per label and the distinct repositories and methods
// the dataset touches. A method is identified by its repository, after-state
// file path, and name.
func Summarize(rows []Row) Stats {
	repos := make(map[string]struct{})
	methods := make(map[string]struct{})

	stats := Stats{Rows: len(rows)}

	for _, row := range rows {
		switch row.Label {
		case LabelPositive:
			stats.Positives++
		case LabelNegative:
			stats.Negatives++
		}

		repos[row.Repository] = struct{}{}
		methods[row.Repository+"\x00"+row.AfterPath+"\x00"+row.MethodName] = struct{}{}
	}

	stats.Repos = len(repos)
	stats.Methods = len(methods)

	return stats
}
