package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestPredicates(t *testing.T) {
	cases := []struct {
		path                    string
		thirdParty, infra, serv bool
	}{
		{"fmt", false, false, false},
		{"encoding/json", false, false, false},
		{"github.com/deckarep/golang-set/v2", true, false, false},
		{"gopkg.in/yaml.v3", true, false, false},
		{"deckcore/pkg/domain", true, false, false},
		{"deckcore/internal/infra/blob/s3", true, true, false},
		{"deckcore/internal/persistence", true, true, false},
		{"deckcore/internal/core", true, false, true},
		{"deckcore/cmd/deckcore", true, false, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.thirdParty, ThirdPartyImport(tc.path), tc.path)
		assert.Equal(t, tc.infra, InfraImport(tc.path), tc.path)
		assert.Equal(t, tc.serv, ServiceImport(tc.path), tc.path)
	}
	assert.True(t, Any(InfraImport, ServiceImport)("deckcore/internal/config"))
	assert.False(t, Any()("fmt"))
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	write("a.go", "package x\n\nimport (\n\t\"fmt\"\n\t\"deckcore/internal/infra/blob/fs\"\n)\n")
	write("a_test.go", "package x\n\nimport \"deckcore/internal/core\"\n")
	write("notes.txt", "import \"deckcore/internal/core\"")

	viols, err := directImportViolations(dir, InfraImport)
	require.NoError(t, err)
	assert.Equal(t, []string{"deckcore/internal/infra/blob/fs (in a.go)"}, viols)

	rec := &recordingFatal{}
	failIfDirectViolations(rec, "engine stays storage agnostic", viols)
	assert.Contains(t, rec.msg, "engine stays storage agnostic")

	rec = &recordingFatal{}
	failIfDirectViolations(rec, "unused", nil)
	assert.Empty(t, rec.msg)

	write("broken.go", "package")
	_, err = directImportViolations(dir, InfraImport)
	assert.Error(t, err)

	_, err = directImportViolations(filepath.Join(dir, "missing"), InfraImport)
	assert.Error(t, err)
}
