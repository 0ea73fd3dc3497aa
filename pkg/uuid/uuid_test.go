// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package uuid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_IsSortableV7(t *testing.T) {
	first := New()
	second := New()

	assert.True(t, Valid(first))
	assert.Equal(t, byte('7'), first[14], "version nibble")
	assert.Less(t, first, second)
}

func TestValid(t *testing.T) {
	assert.False(t, Valid(""))
	assert.False(t, Valid("not-a-uuid"))
	assert.False(t, Valid("{0190a1b2-0000-7000-8000-000000000001}"))
	assert.True(t, Valid("0190a1b2-0000-7000-8000-000000000001"))
}
