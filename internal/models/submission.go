package models

// SubmissionRow is one logical payment submission taken from the submission
// log. A row may reference several remote files; their order in SourceRefs
// determines suffix numbering of the downloaded artifacts.
type SubmissionRow struct {
	FileName       string
	SourceRefs     []string
	SubmissionTime string
	CondoName      string
	RoomNumber     string
	MonthsCovered  string
}

// FileCount reports how many remote files back this submission.
func (r SubmissionRow) FileCount() int {
	return len(r.SourceRefs)
}
