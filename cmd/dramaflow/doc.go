// Command dramaflow turns a novel manuscript into a short-drama project and
// manages ad-hoc image and video generation tasks.
//
//	dramaflow run novel.txt --project moon-river
//	dramaflow tasks generate --type image --prompt "a lantern festival" --count 2
//	dramaflow tasks history --status failed
//	dramaflow stages
//	dramaflow config init
//
// Runs are in-process: a checkpoint halt either prompts on a terminal, is
// skipped with --continue, or ends the command with the partial state shown.
package main
