// Package oracle builds a project with a given flag configuration and
// measures the result.
//
// One evaluation is:
//  1. create build and install directories named after the run identity
//     (e.g. test-12); no two evaluations ever share a directory
//  2. build the project through the instrumenting compiler wrappers, which
//     tag every translation unit with a compilation id
//  3. run the measurement script over the installed artifacts
//  4. sum the per-module results of this build into one score
//
// A failing build, a failing measurement, or a malformed result table all
// produce the failure sentinel together with an *EvalError describing the
// stage and the log file to look at. Nothing is retried.
//
// The oracle never touches search state. It is safe for concurrent use as
// long as concurrent requests carry distinct run identities.
package oracle
