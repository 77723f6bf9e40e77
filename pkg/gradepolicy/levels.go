// Package gradepolicy provides the grade-based approval policy cache that
// parameterizes approver resolution.
package gradepolicy

// gradeLevels is the fixed grade-code to integer-rank table. Approval level
// comparisons are rank comparisons over this table, not string comparisons.
var gradeLevels = map[string]int{
	// Entry and officer grades.
	"E1": 1,
	"E2": 2,
	"E3": 3,
	"E4": 4,

	// Senior officer / supervisor grades.
	"S1": 5,
	"S2": 6,

	// Managerial grades.
	"M10": 10,
	"M11": 11,
	"M12": 12,
	"M13": 13,
	"M14": 14,
	"M15": 15,
	"M16": 16,
	"M17": 17,
	"M18": 18,

	// Directorate and executive grades.
	"D1": 20,
	"D2": 21,
	"C1": 25,
}

// DefaultMaxApprovalLevel is the conservative top-level approval level applied
// when a grade has no configured policy. Routing to the top of the managerial
// ladder is safe; routing too low is not.
const DefaultMaxApprovalLevel = "M17"

// LevelRank returns the numeric rank of a grade code, or 0 when the code is
// not in the table.
func LevelRank(gradeCode string) int {
	return gradeLevels[gradeCode]
}

// KnownGrade reports whether the grade code is in the rank table.
func KnownGrade(gradeCode string) bool {
	_, ok := gradeLevels[gradeCode]

	return ok
}
