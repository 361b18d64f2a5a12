// Package options manipulates ordered ffmpeg-style option token lists.
//
// A token that starts with "-" opens a flag. When the next token is not
// itself a flag it is that flag's value; otherwise the flag is boolean.
// Every helper returns a fresh slice and never mutates its input.
//
// Only the first occurrence of a flag is ever read, replaced, or cleared.
// Later duplicates are left untouched, which mirrors how the stage builder
// has always treated repeated flags in user-supplied option strings.
package options
