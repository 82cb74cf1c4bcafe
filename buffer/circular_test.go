package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCircularFloat(t *testing.T) {
	assert := assert.New(t)

	ci := NewCircularFloat(6)
	assert.Equal(6, ci.BufSize)
	assert.Equal(0, ci.Count)

	ci.Add(1)
	ci.Add(2)
	ci.Add(3)
	ci.Add(4)
	ci.Add(5)
	assert.Equal(6, ci.BufSize)
	assert.Equal(5, ci.Count)
	assert.False(ci.Full())
	assert.Nil(ci.FirstHalf())
	assert.Nil(ci.SecondHalf())

	ci.Add(6)
	assert.Equal(6, ci.BufSize)
	assert.Equal(6, ci.Count)
	assert.True(ci.Full())

	exp := 0.0
	for iter := ci.FirstHalf(); iter.Next(); {
		val := iter.Value()
		exp++
		assert.Equal(exp, val)
	}
	for iter := ci.SecondHalf(); iter.Next(); {
		val := iter.Value()
		exp++
		assert.Equal(exp, val)
	}

	// 1 2 3 4 5 6 add 8 add 8 => 8 8 3 4 5 6
	// So first=3,4,5 second=6,8,8
	ci.Add(8)
	ci.Add(8)
	expVals := []float64{3, 4, 5, 6, 8, 8}
	idx := 0
	for iter := ci.FirstHalf(); iter.Next(); {
		val := iter.Value()
		assert.Equal(expVals[idx], val)
		idx++
	}
	for iter := ci.SecondHalf(); iter.Next(); {
		val := iter.Value()
		assert.Equal(expVals[idx], val)
		idx++
	}
}

func TestHalfMeans(t *testing.T) {
	assert := assert.New(t)

	ci := NewCircularFloat(4)

	_, _, ok := ci.HalfMeans()
	assert.False(ok)

	ci.Add(1)
	ci.Add(3)
	ci.Add(10)
	ci.Add(20)

	first, second, ok := ci.HalfMeans()
	assert.True(ok)
	assert.InDelta(2.0, first, 1e-12)
	assert.InDelta(15.0, second, 1e-12)
}

func TestOddSizeAdjust(t *testing.T) {
	assert := assert.New(t)

	ci := NewCircularFloat(7)
	assert.Equal(6, ci.BufSize)
}
