// Package assets holds files compiled into the binaries.
package assets

import _ "embed"

// QuestionBank is the default question bank used when QUESTION_BANK is unset.
//
//go:embed question_bank.yaml
var QuestionBank []byte
