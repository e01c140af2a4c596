// Package dashboard implements the live terminal view behind "powerroam watch".
//
// The model receives decoded updates as bubbletea messages, folds them into a
// protocol.State and renders whatever is known so far. Fields that have not
// been reported yet show a spinner. The program exits on q or ctrl+c, or when
// the update feed closes.
package dashboard
