package csvimport

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParser(t *testing.T) {
	t.Run("strips BOM", func(t *testing.T) {
		p, err := NewParser(strings.NewReader("\xEF\xBB\xBFtitle,price\nNetflix,10"))
		require.NoError(t, err)
		require.NoError(t, p.ParseHeader())
		assert.Equal(t, []string{"title", "price"}, p.Headers())
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := NewParser(strings.NewReader("  \n"))
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("invalid encoding", func(t *testing.T) {
		_, err := ParseBytes([]byte("title\n\xff\xfeabc\n"))
		assert.ErrorIs(t, err, ErrInvalidEncoding)
	})

	t.Run("custom delimiter", func(t *testing.T) {
		p, err := NewParser(strings.NewReader("title;price\nSpotify;3"), WithDelimiter(';'))
		require.NoError(t, err)
		require.NoError(t, p.ParseHeader())
		row, err := p.ReadRow()
		require.NoError(t, err)
		assert.Equal(t, "3", row.Get("price"))
	})
}

func TestParser_HeaderNormalization(t *testing.T) {
	p, err := ParseBytes([]byte(" Title , PRICE ,quantity\nA,1,2"))
	require.NoError(t, err)
	require.NoError(t, p.ParseHeader())

	assert.Equal(t, []string{"title", "price", "quantity"}, p.Headers())
	assert.Empty(t, p.MissingHeaders("title", "price"))
	assert.Equal(t, []string{"category"}, p.MissingHeaders("title", "category"))
}

func TestParser_ReadAll(t *testing.T) {
	data := "title,price,quantity\n" +
		"Netflix Premium, 12.5 ,3\n" +
		",,\n" +
		"Short,1\n"
	p, err := ParseBytes([]byte(data))
	require.NoError(t, err)
	require.NoError(t, p.ParseHeader())

	rows, err := p.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "Netflix Premium", rows[0].Get("title"))
	assert.Equal(t, "12.5", rows[0].Get("price"))

	// blank line 3 is skipped but still counted
	assert.Equal(t, 4, rows[1].Line)
	assert.Equal(t, "", rows[1].Get("quantity"))
	assert.Equal(t, "1", rows[1].GetOrDefault("quantity", "1"))
}

func TestParser_HeaderOnly(t *testing.T) {
	p, err := ParseBytes([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, p.ParseHeader())
	_, err = p.ReadRow()
	assert.Equal(t, io.EOF, err)
}

func TestBuild(t *testing.T) {
	out, err := Build([]string{"title", "price"}, [][]string{{"A, with comma", "1"}})
	require.NoError(t, err)
	assert.Equal(t, "title,price\n\"A, with comma\",1\n", string(out))
}
