package cache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/matopiba/forecast-pipeline/internal/domain"
)

// codecMagic and codecVersion tag the binary snapshot encoding so a
// future format change can be detected on read rather than silently
// misparsed.
const (
	codecMagic   = "MTPB"
	codecVersion = 1
)

// EncodeSnapshot serializes a Snapshot into a compact, length-prefixed
// binary form. Encoding is deterministic: map iteration is replaced
// with a sort on city code, so two snapshots built from identical
// inputs produce byte-identical output.
func EncodeSnapshot(s domain.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(codecMagic)
	buf.WriteByte(codecVersion)

	writeRunMetadata(&buf, s.Metadata)
	writeValidationMetrics(&buf, s.Validation)

	codes := make([]string, 0, len(s.Forecasts))
	for code := range s.Forecasts {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	writeUint32(&buf, uint32(len(codes)))
	for _, code := range codes {
		writeCityForecast(&buf, s.Forecasts[code])
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot reverses EncodeSnapshot.
func DecodeSnapshot(data []byte) (domain.Snapshot, error) {
	r := bytes.NewReader(data)
	magic := make([]byte, len(codecMagic))
	if _, err := r.Read(magic); err != nil || string(magic) != codecMagic {
		return domain.Snapshot{}, fmt.Errorf("cache: bad magic")
	}
	version, err := r.ReadByte()
	if err != nil || version != codecVersion {
		return domain.Snapshot{}, fmt.Errorf("cache: unsupported codec version %d", version)
	}

	metadata, err := readRunMetadata(r)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("cache: metadata: %w", err)
	}
	validation, err := readValidationMetrics(r)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("cache: validation: %w", err)
	}

	n, err := readUint32(r)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("cache: city count: %w", err)
	}

	forecasts := make(map[string]domain.CityForecast, n)
	for i := uint32(0); i < n; i++ {
		cf, err := readCityForecast(r)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("cache: city %d: %w", i, err)
		}
		forecasts[cf.City.Code] = cf
	}

	return domain.Snapshot{Forecasts: forecasts, Validation: validation, Metadata: metadata}, nil
}

func writeRunMetadata(buf *bytes.Buffer, m domain.RunMetadata) {
	writeString(buf, string(m.RunLabel))
	writeInt64(buf, m.UpdatedAtUTC.UTC().UnixNano())
	writeInt64(buf, m.NextUpdateUTC.UTC().UnixNano())
	writeUint32(buf, uint32(m.NCitiesAttempted))
	writeUint32(buf, uint32(m.NCitiesSucceeded))
	writeFloat64(buf, m.SuccessRate)
	writeString(buf, m.Version)
}

func readRunMetadata(r *bytes.Reader) (domain.RunMetadata, error) {
	label, err := readString(r)
	if err != nil {
		return domain.RunMetadata{}, err
	}
	updatedAt, err := readInt64(r)
	if err != nil {
		return domain.RunMetadata{}, err
	}
	nextUpdate, err := readInt64(r)
	if err != nil {
		return domain.RunMetadata{}, err
	}
	attempted, err := readUint32(r)
	if err != nil {
		return domain.RunMetadata{}, err
	}
	succeeded, err := readUint32(r)
	if err != nil {
		return domain.RunMetadata{}, err
	}
	successRate, err := readFloat64(r)
	if err != nil {
		return domain.RunMetadata{}, err
	}
	version, err := readString(r)
	if err != nil {
		return domain.RunMetadata{}, err
	}
	return domain.RunMetadata{
		RunLabel:         domain.RunLabel(label),
		UpdatedAtUTC:     time.Unix(0, updatedAt).UTC(),
		NextUpdateUTC:    time.Unix(0, nextUpdate).UTC(),
		NCitiesAttempted: int(attempted),
		NCitiesSucceeded: int(succeeded),
		SuccessRate:      successRate,
		Version:          version,
	}, nil
}

func writeValidationMetrics(buf *bytes.Buffer, v domain.ValidationMetrics) {
	writeFloat64(buf, v.R2)
	writeFloat64(buf, v.RMSEMMDay)
	writeFloat64(buf, v.BiasMMDay)
	writeFloat64(buf, v.MAEMMDay)
	writeUint32(buf, uint32(v.NSamples))
	writeString(buf, string(v.Quality))
}

func readValidationMetrics(r *bytes.Reader) (domain.ValidationMetrics, error) {
	r2, err := readFloat64(r)
	if err != nil {
		return domain.ValidationMetrics{}, err
	}
	rmse, err := readFloat64(r)
	if err != nil {
		return domain.ValidationMetrics{}, err
	}
	bias, err := readFloat64(r)
	if err != nil {
		return domain.ValidationMetrics{}, err
	}
	mae, err := readFloat64(r)
	if err != nil {
		return domain.ValidationMetrics{}, err
	}
	n, err := readUint32(r)
	if err != nil {
		return domain.ValidationMetrics{}, err
	}
	quality, err := readString(r)
	if err != nil {
		return domain.ValidationMetrics{}, err
	}
	return domain.ValidationMetrics{
		R2:        r2,
		RMSEMMDay: rmse,
		BiasMMDay: bias,
		MAEMMDay:  mae,
		NSamples:  int(n),
		Quality:   domain.Quality(quality),
	}, nil
}

func writeCityForecast(buf *bytes.Buffer, cf domain.CityForecast) {
	writeString(buf, cf.City.Code)
	writeString(buf, cf.City.Name)
	writeString(buf, cf.City.State)
	writeFloat64(buf, cf.City.Latitude)
	writeFloat64(buf, cf.City.Longitude)
	writeFloat64(buf, cf.City.ElevationM)

	writeUint32(buf, uint32(len(cf.Days)))
	for _, d := range cf.Days {
		writeString(buf, d.DateLocal)
		writeFloat64(buf, d.TMaxC)
		writeFloat64(buf, d.TMinC)
		writeFloat64(buf, d.TMeanC)
		writeFloat64(buf, d.RHMeanPct)
		writeFloat64(buf, d.WSMeanMS)
		writeFloat64(buf, d.RadiationSumMJM2)
		writeFloat64(buf, d.PrecipitationSumMM)
		writeFloat64(buf, d.EtoModelMMDay)
		writeFloat64(buf, d.EtoProviderMMDay)
	}
}

func readCityForecast(r *bytes.Reader) (domain.CityForecast, error) {
	var cf domain.CityForecast
	var err error
	if cf.City.Code, err = readString(r); err != nil {
		return cf, err
	}
	if cf.City.Name, err = readString(r); err != nil {
		return cf, err
	}
	if cf.City.State, err = readString(r); err != nil {
		return cf, err
	}
	if cf.City.Latitude, err = readFloat64(r); err != nil {
		return cf, err
	}
	if cf.City.Longitude, err = readFloat64(r); err != nil {
		return cf, err
	}
	if cf.City.ElevationM, err = readFloat64(r); err != nil {
		return cf, err
	}

	n, err := readUint32(r)
	if err != nil {
		return cf, err
	}
	cf.Days = make([]domain.DailyForecast, n)
	for i := uint32(0); i < n; i++ {
		d := &cf.Days[i]
		if d.DateLocal, err = readString(r); err != nil {
			return cf, err
		}
		if d.TMaxC, err = readFloat64(r); err != nil {
			return cf, err
		}
		if d.TMinC, err = readFloat64(r); err != nil {
			return cf, err
		}
		if d.TMeanC, err = readFloat64(r); err != nil {
			return cf, err
		}
		if d.RHMeanPct, err = readFloat64(r); err != nil {
			return cf, err
		}
		if d.WSMeanMS, err = readFloat64(r); err != nil {
			return cf, err
		}
		if d.RadiationSumMJM2, err = readFloat64(r); err != nil {
			return cf, err
		}
		if d.PrecipitationSumMM, err = readFloat64(r); err != nil {
			return cf, err
		}
		if d.EtoModelMMDay, err = readFloat64(r); err != nil {
			return cf, err
		}
		if d.EtoProviderMMDay, err = readFloat64(r); err != nil {
			return cf, err
		}
	}
	return cf, nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		return "", err
	}
	return string(b), nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := r.Read(tmp[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(tmp[:]), nil
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	buf.Write(tmp[:])
}

func readInt64(r *bytes.Reader) (int64, error) {
	var tmp [8]byte
	if _, err := r.Read(tmp[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(tmp[:])), nil
}

func writeFloat64(buf *bytes.Buffer, v float64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	buf.Write(tmp[:])
}

func readFloat64(r *bytes.Reader) (float64, error) {
	var tmp [8]byte
	if _, err := r.Read(tmp[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(tmp[:])), nil
}
