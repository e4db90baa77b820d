// Package lp models linear programs over named variables and renders them in
// the lp_solve text format.
package lp
