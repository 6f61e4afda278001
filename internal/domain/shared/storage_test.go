package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeObjectName(t *testing.T) {
	assert.Equal(t, "passwd", SafeObjectName("../../etc/passwd"))
	assert.Equal(t, "shot.png", SafeObjectName(`C:\Users\me\shot.png`))
	assert.Equal(t, "file", SafeObjectName(""))
	assert.Equal(t, "a_b.jpg", SafeObjectName("a b.jpg"))
}
