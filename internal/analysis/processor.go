// SPDX-License-Identifier: MIT
package analysis

// FileAnalyzer estimates tempo and key for one audio file.
type FileAnalyzer interface {
	AnalyzeFile(path string) (Result, error)
}

// Compile-time checks for interface implementations.
var _ FileAnalyzer = (*Analyzer)(nil)
