// Package compute reduces one drive's reports to an additive severity score.
//
// score.go provides the pure Compute(Input, Thresholds) function. Each rule
// that fires appends one Issue carrying its contribution; the score is the
// sum of contributions and Classify maps it to a class:
//
//	critical  score >= thresholds.critical_score (500)
//	warning   score >= thresholds.warning_score  (100)
//	info      score >  0
//	healthy   score == 0
//
// Higher is worse. There is no coupling between drives.
package compute
