// Package render writes a finished Report for people and machines.
//
// Console is the default styled output, Plain drops all styling, and JSON
// emits the Report as-is. Recommendations holds the advice shared by the
// text renderers.
package render
