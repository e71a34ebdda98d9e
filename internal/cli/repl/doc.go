// Package repl runs snapctl commands interactively.
//
// Line editing, history and tab completion come from chzyer/readline.
// Each line is split shell-style and handed to an Executor, so every
// command of the CLI works unchanged inside the shell and all lines share
// one open store.
package repl
