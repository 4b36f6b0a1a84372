package rhd

// Geometry captures everything about a file that fixes the data block layout.
// Files are only concatenated into a session when their geometries are equal.
type Geometry struct {
	SampleRate      float32
	SamplesPerBlock int
	SignedTimestamp bool
	Amplifier       int
	AuxInput        int
	SupplyVoltage   int
	TempSensor      int
	BoardADC        int
	DigitalIn       int
	DigitalOut      int
}

// Geometry derives the block layout from the header.
func (h *Header) Geometry() Geometry {
	return Geometry{
		SampleRate:      h.SampleRate,
		SamplesPerBlock: h.SamplesPerBlock(),
		SignedTimestamp: h.Version.AtLeast(1, 2),
		Amplifier:       len(h.Amplifier),
		AuxInput:        len(h.AuxInput),
		SupplyVoltage:   len(h.SupplyVoltage),
		TempSensor:      h.TempSensorCount,
		BoardADC:        len(h.BoardADC),
		DigitalIn:       len(h.DigitalIn),
		DigitalOut:      len(h.DigitalOut),
	}
}

// Within a block the sections appear in this order, each channel-major:
// timestamps, amplifier, aux inputs (quarter rate), supply voltage (once per
// block), temperature (once per block), board ADC, digital in word, digital
// out word.
func (g Geometry) timestampOffset() int { return 0 }

func (g Geometry) amplifierOffset() int { return 4 * g.SamplesPerBlock }

func (g Geometry) auxOffset() int {
	return g.amplifierOffset() + 2*g.SamplesPerBlock*g.Amplifier
}

func (g Geometry) supplyOffset() int {
	return g.auxOffset() + 2*(g.SamplesPerBlock/4)*g.AuxInput
}

func (g Geometry) tempOffset() int {
	return g.supplyOffset() + 2*g.SupplyVoltage
}

func (g Geometry) adcOffset() int {
	return g.tempOffset() + 2*g.TempSensor
}

func (g Geometry) digitalInOffset() int {
	return g.adcOffset() + 2*g.SamplesPerBlock*g.BoardADC
}

func (g Geometry) digitalOutOffset() int {
	off := g.digitalInOffset()
	if g.DigitalIn > 0 {
		off += 2 * g.SamplesPerBlock
	}
	return off
}

// BytesPerBlock is the stride between consecutive data blocks.
func (g Geometry) BytesPerBlock() int {
	n := g.digitalOutOffset()
	if g.DigitalOut > 0 {
		n += 2 * g.SamplesPerBlock
	}
	return n
}
