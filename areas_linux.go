//go:build linux

package vmem

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

func openAreas() (*Areas, error) {
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return nil, osError("opening /proc/self/maps failed", err)
	}
	return &Areas{f: f, sc: bufio.NewScanner(f)}, nil
}

func (a *Areas) next() (Area, bool, error) {
	if !a.sc.Scan() {
		if err := a.sc.Err(); err != nil {
			return Area{}, false, osError("reading /proc/self/maps failed", err)
		}
		return Area{}, false, nil
	}
	return parseMapsLine(a.sc.Text())
}

// parseMapsLine parses one /proc/self/maps line:
//
//	start-end perms offset dev inode          path
//
// The path column is optional and padded with spaces.
func parseMapsLine(line string) (Area, bool, error) {
	parts := strings.SplitN(line, " ", 6)
	if len(parts) < 5 {
		return Area{}, false, errCodef(ErrBackendFailure, "malformed maps line %q", line)
	}
	startStr, endStr, ok := strings.Cut(parts[0], "-")
	if !ok {
		return Area{}, false, errCodef(ErrBackendFailure, "malformed maps range %q", parts[0])
	}
	start, err := strconv.ParseUint(startStr, 16, 64)
	if err != nil {
		return Area{}, false, errCodef(ErrBackendFailure, "malformed maps address %q", startStr)
	}
	end, err := strconv.ParseUint(endStr, 16, 64)
	if err != nil {
		return Area{}, false, errCodef(ErrBackendFailure, "malformed maps address %q", endStr)
	}
	offset, err := strconv.ParseUint(parts[2], 16, 64)
	if err != nil {
		return Area{}, false, errCodef(ErrBackendFailure, "malformed maps offset %q", parts[2])
	}

	perms := parts[1]
	var prot Protection
	if strings.IndexByte(perms, 'r') >= 0 {
		prot |= ProtRead
	}
	if strings.IndexByte(perms, 'w') >= 0 {
		prot |= ProtWrite
	}
	if strings.IndexByte(perms, 'x') >= 0 {
		prot |= ProtExec
	}
	sharing := SharePrivate
	if strings.IndexByte(perms, 's') >= 0 {
		sharing = ShareShared
	}

	var path string
	if len(parts) == 6 {
		path = strings.TrimSpace(parts[5])
	}

	return Area{
		Base:       uintptr(start),
		Length:     int(end - start),
		Protection: prot,
		Sharing:    sharing,
		Path:       path,
		Offset:     int64(offset),
	}, true, nil
}

// queryDirect has no kernel shortcut here; Query rides the walk.
func queryDirect(uintptr) (*Area, bool, error) {
	return nil, false, nil
}
