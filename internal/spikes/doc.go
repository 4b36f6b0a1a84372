// Package spikes post-processes sorter output before it is written in Tint
// form.
//
// Reconcile settles on one canonical spike time per 50-sample chunk when the
// sorter's firing list and the exported snippet timings disagree. Remap
// renumbers cluster labels so isolated units run contiguously from 1 and
// noise or multi-unit clusters sort to the back. LoadMUA reads the tags the
// sorter's metrics step attaches to each cluster.
package spikes
