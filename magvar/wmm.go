package magvar

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

// WGS84 ellipsoid and geomagnetic reference radius, kilometres
const (
	semiMajorAxis   = 6378.137
	flattening      = 1 / 298.257223563
	referenceRadius = 6371.2
)

// Altitude limits in metres
const (
	minAltitude = -1000.0
	maxAltitude = 850000.0
)

// maxDegree bounds the expansion read from a coefficient file.
const maxDegree = 12

//go:embed wmm2020.cof
var defaultCoefficients string

var (
	defaultOnce  sync.Once
	defaultModel *WMM
)

// WMM is a main field model with linear secular variation.
type WMM struct {
	Name   string
	Epoch  float64
	degree int

	// Indexed [n][m]; nT and nT/year
	g, h, gdot, hdot [][]float64
}

// Default returns the embedded WMM-2020 model, degree and order 12.
func Default() *WMM {
	defaultOnce.Do(func() {
		m, err := Load(strings.NewReader(defaultCoefficients))
		if err != nil {
			panic(fmt.Sprintf("magvar: embedded coefficients: %v", err))
		}
		defaultModel = m
	})
	return defaultModel
}

// Load parses a coefficient file in the WMM.COF layout: a header line with
// epoch and model name followed by "n m g h gdot hdot" rows, terminated by a
// line of nines or EOF.
func Load(r io.Reader) (*WMM, error) {
	scanner := bufio.NewScanner(r)

	m := &WMM{
		g:    coefficientTable(),
		h:    coefficientTable(),
		gdot: coefficientTable(),
		hdot: coefficientTable(),
	}

	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if strings.HasPrefix(fields[0], "9999") {
			break
		}

		if line == 1 {
			epoch, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad epoch %q", line, fields[0])
			}
			m.Epoch = epoch
			if len(fields) > 1 {
				m.Name = fields[1]
			}
			continue
		}

		if len(fields) < 6 {
			return nil, fmt.Errorf("line %d: expected 6 fields, got %d", line, len(fields))
		}
		n, errN := strconv.Atoi(fields[0])
		order, errM := strconv.Atoi(fields[1])
		if errN != nil || errM != nil || n < 1 || n > maxDegree || order < 0 || order > n {
			return nil, fmt.Errorf("line %d: bad degree/order %q %q", line, fields[0], fields[1])
		}

		var values [4]float64
		for i := range values {
			v, err := strconv.ParseFloat(fields[2+i], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad coefficient %q", line, fields[2+i])
			}
			values[i] = v
		}
		m.g[n][order], m.h[n][order] = values[0], values[1]
		m.gdot[n][order], m.hdot[n][order] = values[2], values[3]

		if n > m.degree {
			m.degree = n
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read coefficients: %w", err)
	}
	if line == 0 {
		return nil, fmt.Errorf("empty coefficient file")
	}
	if m.degree == 0 {
		return nil, fmt.Errorf("no coefficients in model %s", m.Name)
	}

	return m, nil
}

func coefficientTable() [][]float64 {
	t := make([][]float64, maxDegree+1)
	for n := range t {
		t[n] = make([]float64, n+1)
	}
	return t
}

// Degree returns the highest degree of the expansion.
func (m *WMM) Degree() int {
	return m.degree
}

// Valid reports whether decimal year falls inside [Epoch-5, Epoch+10).
func (m *WMM) Valid(year float64) bool {
	return year >= m.Epoch-5 && year < m.Epoch+10
}

// Declination implements Model. Altitude is in metres above the ellipsoid.
func (m *WMM) Declination(lat, lon, altitude float64, t time.Time) (float64, error) {
	if !validCoordinate(lat, lon, altitude) {
		return 0, fmt.Errorf("%w: lat=%v lon=%v alt=%v", ErrInvalidCoordinate, lat, lon, altitude)
	}
	year := DecimalYear(t)
	if !m.Valid(year) {
		return 0, fmt.Errorf("%w: %.2f not in [%.1f, %.1f)", ErrOutOfRange, year, m.Epoch-5, m.Epoch+10)
	}

	x, y := m.horizontal(lat, lon, altitude/1000, year-m.Epoch)
	return math.Atan2(y, x) * 180 / math.Pi, nil
}

// horizontal returns the north and east field components in the geodetic frame.
func (m *WMM) horizontal(lat, lon, altKm, dt float64) (float64, float64) {
	phi := lat * math.Pi / 180
	lambda := lon * math.Pi / 180

	// Geodetic to geocentric spherical
	e2 := flattening * (2 - flattening)
	sinPhi := math.Sin(phi)
	rc := semiMajorAxis / math.Sqrt(1-e2*sinPhi*sinPhi)
	p := (rc + altKm) * math.Cos(phi)
	z := (rc*(1-e2) + altKm) * sinPhi
	r := math.Hypot(p, z)
	phiC := math.Asin(z / r)

	cosTheta := math.Sin(phiC)
	sinTheta := math.Cos(phiC)
	if sinTheta < 1e-10 {
		sinTheta = 1e-10
	}

	P, dP := legendre(m.degree, cosTheta, sinTheta)

	var x, y, zc float64
	for n := 1; n <= m.degree; n++ {
		ar := math.Pow(referenceRadius/r, float64(n+2))
		for k := 0; k <= n; k++ {
			g := m.g[n][k] + dt*m.gdot[n][k]
			h := m.h[n][k] + dt*m.hdot[n][k]
			cosM := math.Cos(float64(k) * lambda)
			sinM := math.Sin(float64(k) * lambda)

			x += ar * (g*cosM + h*sinM) * dP[n][k]
			y += ar * float64(k) * (g*sinM - h*cosM) * P[n][k] / sinTheta
			zc -= ar * float64(n+1) * (g*cosM + h*sinM) * P[n][k]
		}
	}

	// Rotate the north component back to the geodetic frame
	psi := phiC - phi
	return x*math.Cos(psi) - zc*math.Sin(psi), y
}

// legendre returns Schmidt semi-normalized associated Legendre functions of
// cos(theta) and their derivatives with respect to colatitude theta.
func legendre(degree int, cosTheta, sinTheta float64) ([][]float64, [][]float64) {
	P := coefficientTable()
	dP := coefficientTable()
	P[0][0] = 1

	for n := 1; n <= degree; n++ {
		for k := 0; k <= n; k++ {
			switch {
			case n == 1 && k == 1:
				P[1][1] = sinTheta
				dP[1][1] = cosTheta
			case n == k:
				f := math.Sqrt(float64(2*n-1) / float64(2*n))
				P[n][n] = f * sinTheta * P[n-1][n-1]
				dP[n][n] = f * (cosTheta*P[n-1][n-1] + sinTheta*dP[n-1][n-1])
			default:
				f := math.Sqrt(float64(n*n - k*k))
				var p2, dp2, f2 float64
				if n-2 >= k {
					p2, dp2 = P[n-2][k], dP[n-2][k]
					f2 = math.Sqrt(float64((n-1)*(n-1) - k*k))
				}
				P[n][k] = (float64(2*n-1)*cosTheta*P[n-1][k] - f2*p2) / f
				dP[n][k] = (float64(2*n-1)*(cosTheta*dP[n-1][k]-sinTheta*P[n-1][k]) - f2*dp2) / f
			}
		}
	}

	return P, dP
}
