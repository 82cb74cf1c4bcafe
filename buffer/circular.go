package buffer

// CircularFloat is a circular buffer of float64 samples with the
// ability to iterate over the first and second halves of the values
// collected, in the order that they were appended. Chains use it as a
// sliding convergence window: comparing the two halves of a full
// window gives a cheap drift diagnostic.
type CircularFloat struct {
	buffer    []float64 // actual storage
	pos       int       // Current position in buffer
	BufSize   int       // BufSize is the fixed number of samples maintained in memory
	Count     int       // Count is the number of samples in memory. Will always be <= BufSize
	TotalSeen int64     // TotalSeen is the total number of times Add has been called
}

// NewCircularFloat creates a new circular buffer of totalSize. If
// totalSize is not a multiple of 2, it will be adjusted.
func NewCircularFloat(totalSize int) *CircularFloat {
	// Fix odd number situations
	half := totalSize / 2
	total := half + half

	return &CircularFloat{
		buffer:  make([]float64, total),
		pos:     0,
		BufSize: total,
		Count:   0,
	}
}

// Internal: return the next array position
func (c *CircularFloat) nextPos() int {
	return (c.pos + 1) % c.BufSize
}

// Add appends the given sample to the buffer, overwriting the oldest entry
func (c *CircularFloat) Add(x float64) {
	c.TotalSeen++

	c.buffer[c.pos] = x

	c.pos = c.nextPos()

	c.Count++
	if c.Count > c.BufSize {
		c.Count = c.BufSize // max out
	}
}

// Full returns true once the window has wrapped at least once: the
// half iterators are only valid on a full window.
func (c *CircularFloat) Full() bool {
	return c.Count >= c.BufSize
}

// FirstHalf returns an iterator over the first (oldest) half of the
// stored values. Will not return a valid iterator until the window is
// Full.
func (c *CircularFloat) FirstHalf() *CircularFloatIterator {
	if !c.Full() {
		return nil
	}

	return &CircularFloatIterator{
		buf:    c,
		curr:   c.pos, // Oldest is the one we're about to write
		remain: c.BufSize / 2,
	}
}

// SecondHalf returns an iterator over the second (most recent) half of
// the stored values. Will not return a valid iterator until the window
// is Full.
func (c *CircularFloat) SecondHalf() *CircularFloatIterator {
	if !c.Full() {
		return nil
	}

	half := c.BufSize / 2
	pos := (c.pos + half) % c.BufSize

	return &CircularFloatIterator{
		buf:    c,
		curr:   pos,
		remain: half,
	}
}

// HalfMeans returns the means of the two window halves. Only valid
// once the window is Full (second return is false otherwise).
func (c *CircularFloat) HalfMeans() (first float64, second float64, ok bool) {
	if !c.Full() {
		return 0, 0, false
	}

	half := float64(c.BufSize / 2)
	for it := c.FirstHalf(); it.Next(); {
		first += it.Value()
	}
	for it := c.SecondHalf(); it.Next(); {
		second += it.Value()
	}

	return first / half, second / half, true
}

// CircularFloatIterator provides an iterator over a CircularFloat buffer
type CircularFloatIterator struct {
	buf    *CircularFloat
	curr   int
	remain int
}

// Next returns True when there are more values to read via Value
func (i *CircularFloatIterator) Next() bool {
	return i.remain > 0
}

// Value returns the next sample to be read. Should only be called if
// Next() is True
func (i *CircularFloatIterator) Value() float64 {
	v := i.buf.buffer[i.curr]
	i.curr = (i.curr + 1) % i.buf.BufSize
	i.remain--
	return v
}
