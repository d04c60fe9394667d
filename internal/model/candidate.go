package model

import "time"

// Candidate represents an exam taker belonging to one organization.
type Candidate struct {
	ID           int       `json:"id"`
	OrgID        int       `json:"org_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	School       string    `json:"school"`
	Department   string    `json:"department"`
	Batch        string    `json:"batch"`
	Semester     int       `json:"semester"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// CandidateFilter is a conjunctive predicate over candidate profile
// attributes. Each dimension accepts zero or more values (evaluated as IN);
// an empty dimension imposes no constraint.
type CandidateFilter struct {
	Schools     []string `json:"schools" binding:"omitempty,dive,max=255"`
	Departments []string `json:"departments" binding:"omitempty,dive,max=255"`
	Batches     []string `json:"batches" binding:"omitempty,dive,max=64"`
	Semesters   []int    `json:"semesters" binding:"omitempty,dive,min=1,max=16"`
}

// Empty reports whether no dimension constrains the candidate set.
func (f CandidateFilter) Empty() bool {
	return len(f.Schools) == 0 && len(f.Departments) == 0 &&
		len(f.Batches) == 0 && len(f.Semesters) == 0
}
