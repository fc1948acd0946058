package convlog

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		want  Failure
		match bool
	}{
		{
			name:  "plain",
			line:  "Conversion for V-225223 failed. Error: Unable to parse registry path",
			want:  Failure{RuleID: "V-225223", Error: "Unable to parse registry path"},
			match: true,
		},
		{
			name:  "prefixed with clixml artifacts and quotes",
			line:  `WARNING: conversion for V-254254.a FAILED. error: "Bad value_x000D__x000A_at line 3"`,
			want:  Failure{RuleID: "V-254254.a", Error: "Bad value at line 3"},
			match: true,
		},
		{
			name:  "empty error text",
			line:  "Conversion for V-1 failed. Error:",
			want:  Failure{RuleID: "V-1"},
			match: true,
		},
		{name: "no error marker", line: "Conversion for V-1 failed."},
		{name: "success line", line: "Conversion for V-1 succeeded"},
		{name: "unrelated", line: "Processing rule V-1"},
		{name: "not a rule id", line: "Conversion for V-abc failed. Error: x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLine(tt.line)
			assert.Equal(t, tt.match, ok)
			if tt.match {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFailure_String(t *testing.T) {
	assert.Equal(t, "V-1 failed.", Failure{RuleID: "V-1"}.String())
	assert.Equal(t, "V-1 failed: boom", Failure{RuleID: "V-1", Error: "boom"}.String())
}

const converterOutput = `Starting conversion
Conversion for V-100 failed. Error: first
INFO processed V-2
Conversion for V-20 failed. Error: second
Conversion for v-100 failed. Error: replaced
`

func TestParse(t *testing.T) {
	log := NewFailureLog()
	count, err := Parse(strings.NewReader(converterOutput), log)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 2, log.Len())

	failures := log.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, "V-20", failures[0].RuleID)
	assert.Equal(t, "v-100", failures[1].RuleID)
	assert.Equal(t, "replaced", failures[1].Error)

	assert.True(t, log.Has("V-100"))
	assert.False(t, log.Has("V-2"))
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "convert.log")
	require.NoError(t, os.WriteFile(path, []byte(converterOutput), 0644))

	log := NewFailureLog()
	count, err := ParseFile(path, log)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	_, err = ParseFile(filepath.Join(t.TempDir(), "absent.log"), log)
	assert.Error(t, err)
}

func TestFailureLog_Succeeded(t *testing.T) {
	log := NewFailureLog()
	log.Record(Failure{RuleID: "V-2", Error: "x"})
	log.Record(Failure{RuleID: "  "})

	assert.Equal(t, 1, log.Len())
	assert.Equal(t, []string{"V-1", "V-3"}, log.Succeeded([]string{"V-3", "V-2", "V-1", "v-1", "CCI-1"}))
}

func TestFailureLog_NilSafe(t *testing.T) {
	var log *FailureLog
	assert.Equal(t, 0, log.Len())
	assert.False(t, log.Has("V-1"))
	assert.Nil(t, log.Failures())
}

func TestFailureLog_Concurrent(t *testing.T) {
	log := NewFailureLog()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Record(Failure{RuleID: "V-1"})
			_ = log.Has("V-1")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, log.Len())
}
