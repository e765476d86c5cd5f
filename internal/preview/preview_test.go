package preview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPlain(t *testing.T) {
	out, err := Render("# Context\n- Endpoint: GET /users", 10, true)
	require.NoError(t, err)
	assert.Contains(t, out, "Context")
	assert.Contains(t, out, "GET /users")
}

func TestMethodBadgeKeepsLabel(t *testing.T) {
	for _, m := range []string{"get", "POST", "PUT", "DELETE", "PATCH", "HEAD"} {
		assert.Contains(t, MethodBadge(m), strings.ToUpper(m))
	}
}

func TestLine(t *testing.T) {
	l := Line("GET", "/users", "List users")
	assert.Contains(t, l, "/users")
	assert.Contains(t, l, "List users")
}
