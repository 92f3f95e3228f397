package pagecache

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/goforj/pagecache/internal/binproto"
)

// fakeMemcached is an in-memory memcached reachable through dialMemcached.
// Every address shares one keyspace.
type fakeMemcached struct {
	mu      sync.Mutex
	data    map[string][]byte
	expiry  map[string]uint32
	flags   map[string]uint32
	dials   map[string]int
	down    map[string]bool
	deletes []string
	flushes int
	uptime  string

	// setStatus forces every binary set to fail with this status.
	setStatus binproto.Status
	// setReply forces every text set to answer with this line.
	setReply string
}

func newFakeMemcached() *fakeMemcached {
	return &fakeMemcached{
		data:   make(map[string][]byte),
		expiry: make(map[string]uint32),
		flags:  make(map[string]uint32),
		dials:  make(map[string]int),
		down:   make(map[string]bool),
		uptime: "42",
	}
}

// install points dialMemcached at the fake for the duration of the test.
func (f *fakeMemcached) install(t *testing.T, text bool) {
	t.Helper()
	orig := dialMemcached
	t.Cleanup(func() { dialMemcached = orig })
	dialMemcached = func(_ context.Context, _ string, addr string) (net.Conn, error) {
		f.mu.Lock()
		f.dials[addr]++
		down := f.down[addr]
		f.mu.Unlock()
		if down {
			return nil, errors.New("connection refused")
		}
		server, client := net.Pipe()
		if text {
			go f.serveText(server)
		} else {
			go f.serveBinary(server)
		}
		return client, nil
	}
}

func (f *fakeMemcached) setDown(addr string) {
	f.mu.Lock()
	f.down[addr] = true
	f.mu.Unlock()
}

func (f *fakeMemcached) dialCount(addr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials[addr]
}

func (f *fakeMemcached) value(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok
}

func (f *fakeMemcached) serveBinary(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		req, err := binproto.Read(r)
		if err != nil {
			return
		}
		key := string(req.Key)
		resp := binproto.Packet{Magic: binproto.MagicResponse, Opcode: req.Opcode, Opaque: req.Opaque}
		out := []binproto.Packet{}

		f.mu.Lock()
		switch req.Opcode {
		case binproto.OpGet:
			if v, ok := f.data[key]; ok {
				resp.Extras = make([]byte, 4)
				binary.BigEndian.PutUint32(resp.Extras, f.flags[key])
				resp.Value = v
			} else {
				resp.Status = binproto.StatusKeyNotFound
				resp.Value = []byte("Not found")
			}
		case binproto.OpSet:
			if f.setStatus != binproto.StatusOK {
				resp.Status = f.setStatus
				break
			}
			f.data[key] = append([]byte(nil), req.Value...)
			f.flags[key] = binary.BigEndian.Uint32(req.Extras[0:4])
			f.expiry[key] = binary.BigEndian.Uint32(req.Extras[4:8])
		case binproto.OpDelete:
			f.deletes = append(f.deletes, key)
			if _, ok := f.data[key]; ok {
				delete(f.data, key)
			} else {
				resp.Status = binproto.StatusKeyNotFound
			}
		case binproto.OpFlush:
			f.flushes++
			f.data = make(map[string][]byte)
		case binproto.OpStat:
			for _, kv := range [][2]string{{"pid", "1"}, {"uptime", f.uptime}} {
				out = append(out, binproto.Packet{
					Magic:  binproto.MagicResponse,
					Opcode: binproto.OpStat,
					Key:    []byte(kv[0]),
					Value:  []byte(kv[1]),
				})
			}
		default:
			resp.Status = binproto.StatusUnknownCommand
		}
		f.mu.Unlock()

		out = append(out, resp)
		for _, p := range out {
			if err := binproto.Write(conn, p); err != nil {
				return
			}
		}
	}
}

func (f *fakeMemcached) serveText(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		f.mu.Lock()
		switch parts[0] {
		case "version":
			w.WriteString("VERSION 1.6.21\r\n")
		case "get":
			if v, ok := f.data[parts[1]]; ok {
				fmt.Fprintf(w, "VALUE %s %d %d\r\n", parts[1], f.flags[parts[1]], len(v))
				w.Write(v)
				w.WriteString("\r\n")
			}
			w.WriteString("END\r\n")
		case "set":
			// set <key> <flags> <exptime> <bytes>
			n, _ := strconv.Atoi(parts[4])
			buf := make([]byte, n)
			f.mu.Unlock()
			_, err := io.ReadFull(r, buf)
			if err == nil {
				_, err = r.ReadString('\n')
			}
			f.mu.Lock()
			if err != nil {
				f.mu.Unlock()
				return
			}
			if f.setReply != "" {
				w.WriteString(f.setReply + "\r\n")
				break
			}
			flags, _ := strconv.ParseUint(parts[2], 10, 32)
			exp, _ := strconv.ParseUint(parts[3], 10, 32)
			f.data[parts[1]] = buf
			f.flags[parts[1]] = uint32(flags)
			f.expiry[parts[1]] = uint32(exp)
			w.WriteString("STORED\r\n")
		case "delete":
			f.deletes = append(f.deletes, parts[1])
			if _, ok := f.data[parts[1]]; ok {
				delete(f.data, parts[1])
				w.WriteString("DELETED\r\n")
			} else {
				w.WriteString("NOT_FOUND\r\n")
			}
		case "flush_all":
			f.flushes++
			f.data = make(map[string][]byte)
			w.WriteString("OK\r\n")
		default:
			w.WriteString("ERROR\r\n")
		}
		f.mu.Unlock()
		if err := w.Flush(); err != nil {
			return
		}
	}
}
