package htmltext

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTextSeparatesNodes(t *testing.T) {
	t.Parallel()

	doc, err := Document(`<div><h2>Career</h2><p>Outcomes<b>matter</b></p><script>var x = 1;</script></div>`)
	require.NoError(t, err)
	require.Equal(t, "Career Outcomes matter", Text(doc.Find("div")))
}

func TestOwnTextIgnoresChildren(t *testing.T) {
	t.Parallel()

	doc, err := Document(`<section> Contact the
	international office <p>nested text</p></section>`)
	require.NoError(t, err)
	require.Equal(t, "Contact the international office", OwnText(doc.Find("section")))
}

func TestCollapse(t *testing.T) {
	t.Parallel()

	require.Equal(t, "a b c", Collapse("  a\n\tb   c "))
	require.Empty(t, Collapse(" \n "))
}
