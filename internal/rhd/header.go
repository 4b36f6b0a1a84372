package rhd

import (
	"encoding/binary"
	"fmt"
	"math"

	"msconvert/internal/fileutil"
	"msconvert/internal/services"
)

// Magic is the first word of every RHD file.
const Magic uint32 = 0xC6912702

// Version is the (major, minor) format version stored after the magic number.
type Version struct {
	Major int16
	Minor int16
}

// AtLeast reports whether v is major.minor or newer.
func (v Version) AtLeast(major, minor int16) bool {
	return v.Major > major || (v.Major == major && v.Minor >= minor)
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// SignalType routes a channel into one of the six channel groups.
type SignalType int16

const (
	SignalAmplifier SignalType = iota
	SignalAuxInput
	SignalSupplyVoltage
	SignalBoardADC
	SignalDigitalIn
	SignalDigitalOut
)

func (t SignalType) String() string {
	switch t {
	case SignalAmplifier:
		return "amplifier"
	case SignalAuxInput:
		return "aux_input"
	case SignalSupplyVoltage:
		return "supply_voltage"
	case SignalBoardADC:
		return "board_adc"
	case SignalDigitalIn:
		return "digital_in"
	case SignalDigitalOut:
		return "digital_out"
	default:
		return fmt.Sprintf("signal_type(%d)", int16(t))
	}
}

// Trigger holds a channel's spike trigger settings.
type Trigger struct {
	VoltageTriggerMode    int16
	VoltageThreshold      int16
	DigitalTriggerChannel int16
	DigitalEdgePolarity   int16
}

// Channel describes one enabled channel. NativeOrder is the bit position for
// digital channels.
type Channel struct {
	NativeName         string
	CustomName         string
	NativeOrder        int16
	OriginalOrder      int16
	Type               SignalType
	ChipChannel        int16
	BoardStream        int16
	Trigger            Trigger
	ImpedanceMagnitude float32
	ImpedancePhase     float32
}

// Header is the parsed, immutable header of one RHD file.
type Header struct {
	Version               Version
	SampleRate            float32
	DSPEnabled            bool
	ActualDSPCutoff       float32
	ActualLowerBandwidth  float32
	ActualUpperBandwidth  float32
	DesiredDSPCutoff      float32
	DesiredLowerBandwidth float32
	DesiredUpperBandwidth float32
	// NotchFrequency is 0 (disabled), 50, or 60 Hz.
	NotchFrequency        int
	DesiredImpedanceFreq  float32
	ActualImpedanceFreq   float32
	Notes                 [3]string
	SettingsFilename      string
	TempSensorCount       int
	EvalBoardMode         int
	ReferenceChannel      string

	Amplifier     []Channel
	AuxInput      []Channel
	SupplyVoltage []Channel
	BoardADC      []Channel
	DigitalIn     []Channel
	DigitalOut    []Channel

	// Length is the number of bytes the header occupies; data blocks start here.
	Length int
}

// SamplesPerBlock is 60 before format 2.0 and 128 from 2.0 on.
func (h *Header) SamplesPerBlock() int {
	if h.Version.Major > 1 {
		return 128
	}
	return 60
}

// Group returns the enabled channels of the given type.
func (h *Header) Group(t SignalType) []Channel {
	switch t {
	case SignalAmplifier:
		return h.Amplifier
	case SignalAuxInput:
		return h.AuxInput
	case SignalSupplyVoltage:
		return h.SupplyVoltage
	case SignalBoardADC:
		return h.BoardADC
	case SignalDigitalIn:
		return h.DigitalIn
	case SignalDigitalOut:
		return h.DigitalOut
	default:
		return nil
	}
}

func (h *Header) addChannel(ch Channel) error {
	switch ch.Type {
	case SignalAmplifier:
		h.Amplifier = append(h.Amplifier, ch)
	case SignalAuxInput:
		h.AuxInput = append(h.AuxInput, ch)
	case SignalSupplyVoltage:
		h.SupplyVoltage = append(h.SupplyVoltage, ch)
	case SignalBoardADC:
		h.BoardADC = append(h.BoardADC, ch)
	case SignalDigitalIn:
		h.DigitalIn = append(h.DigitalIn, ch)
	case SignalDigitalOut:
		h.DigitalOut = append(h.DigitalOut, ch)
	default:
		return fmt.Errorf("channel %q: unknown signal type %d", ch.NativeName, int16(ch.Type))
	}
	return nil
}

type fieldKind uint8

const (
	fieldInt16 fieldKind = iota
	fieldUint32
	fieldFloat32
	fieldQString
)

type fieldValue struct {
	i int64
	f float32
	s string
}

// headerField is one entry of the fixed part of the header. Fields whose
// present predicate is false for the file's version occupy no bytes.
type headerField struct {
	name    string
	kind    fieldKind
	present func(Version) bool
	set     func(h *Header, v fieldValue) error
}

func since(major, minor int16) func(Version) bool {
	return func(v Version) bool { return v.AtLeast(major, minor) }
}

func setFloat(dst func(h *Header) *float32) func(*Header, fieldValue) error {
	return func(h *Header, v fieldValue) error {
		*dst(h) = v.f
		return nil
	}
}

func setNote(i int) func(*Header, fieldValue) error {
	return func(h *Header, v fieldValue) error {
		h.Notes[i] = v.s
		return nil
	}
}

var headerFields = []headerField{
	{name: "magic number", kind: fieldUint32, set: func(h *Header, v fieldValue) error {
		if uint32(v.i) != Magic {
			return fmt.Errorf("unrecognized magic number %#x", uint32(v.i))
		}
		return nil
	}},
	{name: "version major", kind: fieldInt16, set: func(h *Header, v fieldValue) error {
		h.Version.Major = int16(v.i)
		return nil
	}},
	{name: "version minor", kind: fieldInt16, set: func(h *Header, v fieldValue) error {
		h.Version.Minor = int16(v.i)
		if h.Version.Major < 1 || h.Version.Major > 3 || h.Version.Minor < 0 {
			return fmt.Errorf("unsupported format version %s", h.Version)
		}
		return nil
	}},
	{name: "sample rate", kind: fieldFloat32, set: func(h *Header, v fieldValue) error {
		if v.f <= 0 || math.IsNaN(float64(v.f)) || math.IsInf(float64(v.f), 0) {
			return fmt.Errorf("invalid sample rate %v", v.f)
		}
		h.SampleRate = v.f
		return nil
	}},
	{name: "dsp enabled", kind: fieldInt16, set: func(h *Header, v fieldValue) error {
		h.DSPEnabled = v.i != 0
		return nil
	}},
	{name: "actual dsp cutoff", kind: fieldFloat32, set: setFloat(func(h *Header) *float32 { return &h.ActualDSPCutoff })},
	{name: "actual lower bandwidth", kind: fieldFloat32, set: setFloat(func(h *Header) *float32 { return &h.ActualLowerBandwidth })},
	{name: "actual upper bandwidth", kind: fieldFloat32, set: setFloat(func(h *Header) *float32 { return &h.ActualUpperBandwidth })},
	{name: "desired dsp cutoff", kind: fieldFloat32, set: setFloat(func(h *Header) *float32 { return &h.DesiredDSPCutoff })},
	{name: "desired lower bandwidth", kind: fieldFloat32, set: setFloat(func(h *Header) *float32 { return &h.DesiredLowerBandwidth })},
	{name: "desired upper bandwidth", kind: fieldFloat32, set: setFloat(func(h *Header) *float32 { return &h.DesiredUpperBandwidth })},
	{name: "notch filter mode", kind: fieldInt16, set: func(h *Header, v fieldValue) error {
		switch v.i {
		case 1:
			h.NotchFrequency = 50
		case 2:
			h.NotchFrequency = 60
		default:
			h.NotchFrequency = 0
		}
		return nil
	}},
	{name: "desired impedance frequency", kind: fieldFloat32, set: setFloat(func(h *Header) *float32 { return &h.DesiredImpedanceFreq })},
	{name: "actual impedance frequency", kind: fieldFloat32, set: setFloat(func(h *Header) *float32 { return &h.ActualImpedanceFreq })},
	{name: "note 1", kind: fieldQString, set: setNote(0)},
	{name: "note 2", kind: fieldQString, set: setNote(1)},
	{name: "note 3", kind: fieldQString, set: setNote(2)},
	{name: "settings filename", kind: fieldQString, present: since(1, 6), set: func(h *Header, v fieldValue) error {
		h.SettingsFilename = v.s
		return nil
	}},
	{name: "temp sensor channels", kind: fieldInt16, present: since(1, 1), set: func(h *Header, v fieldValue) error {
		if v.i < 0 {
			return fmt.Errorf("negative temp sensor count %d", v.i)
		}
		h.TempSensorCount = int(v.i)
		return nil
	}},
	{name: "eval board mode", kind: fieldInt16, present: since(1, 3), set: func(h *Header, v fieldValue) error {
		h.EvalBoardMode = int(v.i)
		return nil
	}},
	{name: "reference channel", kind: fieldQString, present: since(2, 0), set: func(h *Header, v fieldValue) error {
		h.ReferenceChannel = v.s
		return nil
	}},
}

type cursor struct {
	buf []byte
	off int
}

func (c *cursor) need(n int, what string) error {
	if c.off+n > len(c.buf) {
		return fmt.Errorf("%s at offset %d: header ends at %d", what, c.off, len(c.buf))
	}
	return nil
}

func (c *cursor) int16(what string) (int16, error) {
	if err := c.need(2, what); err != nil {
		return 0, err
	}
	v := int16(binary.LittleEndian.Uint16(c.buf[c.off:]))
	c.off += 2
	return v, nil
}

func (c *cursor) uint32(what string) (uint32, error) {
	if err := c.need(4, what); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.buf[c.off:])
	c.off += 4
	return v, nil
}

func (c *cursor) float32(what string) (float32, error) {
	v, err := c.uint32(what)
	return math.Float32frombits(v), err
}

func (c *cursor) qstring(what string) (string, error) {
	s, n, err := readQString(c.buf, c.off)
	if err != nil {
		return "", fmt.Errorf("%s: %w", what, err)
	}
	c.off += n
	return s, nil
}

func (c *cursor) field(f headerField) (fieldValue, error) {
	var v fieldValue
	switch f.kind {
	case fieldInt16:
		i, err := c.int16(f.name)
		v.i = int64(i)
		return v, err
	case fieldUint32:
		u, err := c.uint32(f.name)
		v.i = int64(u)
		return v, err
	case fieldFloat32:
		fl, err := c.float32(f.name)
		v.f = fl
		return v, err
	case fieldQString:
		s, err := c.qstring(f.name)
		v.s = s
		return v, err
	default:
		return v, fmt.Errorf("%s: unknown field kind %d", f.name, f.kind)
	}
}

// ParseHeader decodes the header at the start of buf. The returned header's
// Length is exactly the number of bytes consumed.
func ParseHeader(buf []byte) (*Header, error) {
	h, err := parseHeader(buf)
	if err != nil {
		return nil, services.Wrap(services.ErrFormat, "rhd", "parse header", "", err)
	}
	return h, nil
}

func parseHeader(buf []byte) (*Header, error) {
	h := &Header{}
	c := &cursor{buf: buf}

	for _, f := range headerFields {
		if f.present != nil && !f.present(h.Version) {
			continue
		}
		v, err := c.field(f)
		if err != nil {
			return nil, err
		}
		if err := f.set(h, v); err != nil {
			return nil, err
		}
	}

	groups, err := c.int16("signal group count")
	if err != nil {
		return nil, err
	}
	if groups < 0 {
		return nil, fmt.Errorf("negative signal group count %d", groups)
	}
	for g := 0; g < int(groups); g++ {
		if err := parseSignalGroup(c, h, g); err != nil {
			return nil, err
		}
	}

	h.Length = c.off
	return h, nil
}

func parseSignalGroup(c *cursor, h *Header, index int) error {
	label := fmt.Sprintf("signal group %d", index)
	if _, err := c.qstring(label + " name"); err != nil {
		return err
	}
	if _, err := c.qstring(label + " prefix"); err != nil {
		return err
	}
	enabled, err := c.int16(label + " enabled")
	if err != nil {
		return err
	}
	count, err := c.int16(label + " channel count")
	if err != nil {
		return err
	}
	if _, err := c.int16(label + " amplifier count"); err != nil {
		return err
	}
	if enabled <= 0 || count <= 0 {
		return nil
	}
	for i := 0; i < int(count); i++ {
		ch, chEnabled, err := parseChannel(c, fmt.Sprintf("%s channel %d", label, i))
		if err != nil {
			return err
		}
		if !chEnabled {
			continue
		}
		if err := h.addChannel(ch); err != nil {
			return err
		}
	}
	return nil
}

func parseChannel(c *cursor, label string) (Channel, bool, error) {
	var ch Channel
	var err error
	if ch.NativeName, err = c.qstring(label + " native name"); err != nil {
		return ch, false, err
	}
	if ch.CustomName, err = c.qstring(label + " custom name"); err != nil {
		return ch, false, err
	}
	if err := c.need(28, label+" record"); err != nil {
		return ch, false, err
	}
	var ints [10]int16
	for i := range ints {
		ints[i], _ = c.int16(label)
	}
	ch.NativeOrder = ints[0]
	ch.OriginalOrder = ints[1]
	ch.Type = SignalType(ints[2])
	enabled := ints[3] != 0
	ch.ChipChannel = ints[4]
	ch.BoardStream = ints[5]
	ch.Trigger = Trigger{
		VoltageTriggerMode:    ints[6],
		VoltageThreshold:      ints[7],
		DigitalTriggerChannel: ints[8],
		DigitalEdgePolarity:   ints[9],
	}
	ch.ImpedanceMagnitude, _ = c.float32(label)
	ch.ImpedancePhase, _ = c.float32(label)
	return ch, enabled, nil
}

// ReadHeader maps path read-only and parses its header.
func ReadHeader(path string) (*Header, error) {
	m, err := fileutil.MapReadOnly(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "rhd", "open", path, err)
	}
	defer m.Close()
	h, err := ParseHeader(m.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}
