package tint

import (
	"bufio"
	"encoding/binary"
	"io"

	"msconvert/internal/axona"
	"msconvert/internal/fileutil"
	"msconvert/internal/services"
)

// PosRecordSize is the body size of one position sample.
const PosRecordSize = 4 + 8*2

// WritePos writes positions as a .pos file. set supplies the header block,
// tracking window and pixel scale.
func WritePos(path string, set *axona.Set, positions []axona.Position) error {
	window := make([]int, 4)
	for i, key := range []string{"xmin", "xmax", "ymin", "ymax"} {
		v, err := set.Int(key)
		if err != nil {
			return services.Wrap(services.ErrFormat, "tint", "write pos", "tracking window", err)
		}
		window[i] = v
	}
	ppm, err := set.Float("tracker_pixels_per_metre")
	if err != nil {
		return services.Wrap(services.ErrFormat, "tint", "write pos", "pixel scale", err)
	}

	var h header
	h.raw(set.Header()...)
	h.add("num_colours %d", 4)
	h.add("min_x %d", 0)
	h.add("max_x %d", 768)
	h.add("min_y %d", 0)
	h.add("max_y %d", 574)
	h.add("window_min_x %d", window[0])
	h.add("window_max_x %d", window[1])
	h.add("window_min_y %d", window[2])
	h.add("window_max_y %d", window[3])
	h.add("timebase %d hz", 50)
	h.add("bytes_per_timestamp %d", 4)
	h.add("sample_rate %.1f hz", 50.0)
	h.add("EEG_samples_per_position %d", 5)
	for i := 1; i <= 4; i++ {
		h.add("bearing_colour_%d %d", i, 0)
	}
	h.add("pos_format t,x1,y1,x2,y2,numpix1,numpix2")
	h.add("bytes_per_coord %d", 2)
	h.add("pixels_per_metre %f", ppm)
	h.add("num_pos_samples %d", len(positions))

	return fileutil.WriteAtomic(path, func(w io.Writer) error {
		return h.writeFile(w, func(bw *bufio.Writer) error {
			var rec [PosRecordSize]byte
			for _, p := range positions {
				binary.BigEndian.PutUint32(rec[0:], p.Frame)
				for i, v := range p.Values() {
					binary.BigEndian.PutUint16(rec[4+2*i:], uint16(v))
				}
				if _, err := bw.Write(rec[:]); err != nil {
					return err
				}
			}
			return nil
		})
	})
}
