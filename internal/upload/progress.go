package upload

import "io"

// progressReader counts request-body bytes as they stream through and
// reports whole-percent changes to onChange. total is the declared
// content length including multipart framing overhead, so the percentage
// is an approximation of true file progress; the ingestor forces 100 at
// completion regardless. A non-positive total (chunked encoding) disables
// intermediate reporting.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	lastPct  int
	onChange func(pct int)
}

func newProgressReader(r io.Reader, total int64, onChange func(int)) *progressReader {
	return &progressReader{r: r, total: total, lastPct: -1, onChange: onChange}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		if p.total > 0 {
			pct := int(p.read * 100 / p.total)
			if pct > 100 {
				pct = 100
			}
			if pct != p.lastPct {
				p.lastPct = pct
				p.onChange(pct)
			}
		}
	}
	return n, err
}

// BytesRead returns the number of body bytes consumed so far.
func (p *progressReader) BytesRead() int64 {
	return p.read
}
