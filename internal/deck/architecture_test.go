package deck_test

import (
	"testing"

	"deckcore/testutil"
)

func TestDeckIsStorageAgnostic(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.Any(testutil.InfraImport, testutil.ServiceImport),
		"the deck engine must not depend on drivers or the service layer")
}
