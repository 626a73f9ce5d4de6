// Command hmodgen packs a hibernation module container: the fixed
// header, checksum stamped, followed by a WebAssembly payload. The
// payload is either taken from an existing .wasm file or synthesized as
// a stub that embeds the header copy and an optional entry point, which
// is enough to exercise the loader end to end.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lumen-os/hdep/header"
	"github.com/lumen-os/hdep/wasm"
)

func main() {
	var (
		name       = flag.String("name", "", "module name (required)")
		author     = flag.String("author", "Lumen OS Hibernation Team", "author string")
		version    = flag.String("version", "1.0", "module version, major.minor")
		api        = flag.String("api", "1.2", "required loader API version, major.minor")
		typeList   = flag.String("type", "", "comma-separated type bits, e.g. compress,hardware (required)")
		depList    = flag.String("deps", "", "comma-separated dependency types, e.g. core,encrypt")
		payload    = flag.String("payload", "", "wasm payload file; omit to synthesize a stub")
		initStatus = flag.Int("init-status", 0, "entry-point return status for stub payloads")
		noInit     = flag.Bool("no-init", false, "omit the entry point from stub payloads")
		out        = flag.String("out", "", "output path; defaults to <name>.hmod")
	)
	flag.Parse()

	if err := run(*name, *author, *version, *api, *typeList, *depList, *payload, *out, int32(*initStatus), *noInit); err != nil {
		fmt.Fprintf(os.Stderr, "hmodgen: %v\n", err)
		os.Exit(1)
	}
}

func run(name, author, version, api, typeList, depList, payloadPath, out string, initStatus int32, noInit bool) error {
	if name == "" {
		return fmt.Errorf("-name is required")
	}
	if typeList == "" {
		return fmt.Errorf("-type is required")
	}

	ver, err := parseVersion(version)
	if err != nil {
		return fmt.Errorf("-version: %w", err)
	}
	apiVer, err := parseVersion(api)
	if err != nil {
		return fmt.Errorf("-api: %w", err)
	}
	typ, err := parseTypes(typeList)
	if err != nil {
		return fmt.Errorf("-type: %w", err)
	}

	var deps []header.ModuleType
	if depList != "" {
		for _, part := range strings.Split(depList, ",") {
			bit, ok := header.TypeFromName(strings.TrimSpace(part))
			if !ok {
				return fmt.Errorf("-deps: unknown type %q", part)
			}
			deps = append(deps, bit)
		}
	}

	desc := header.Descriptor{
		Name:        name,
		Author:      author,
		Deps:        deps,
		Version:     ver,
		Type:        typ,
		RequiredAPI: uint32(apiVer),
		Timestamp:   uint64(time.Now().Unix()),
	}
	hdr, err := desc.EncodeWithChecksum()
	if err != nil {
		return err
	}

	var body []byte
	if payloadPath != "" {
		body, err = os.ReadFile(payloadPath)
		if err != nil {
			return err
		}
	} else {
		spec := wasm.PayloadSpec{Header: hdr}
		if !noInit {
			status := initStatus
			spec.InitStatus = &status
		}
		body = spec.Encode()
	}

	if out == "" {
		out = name + ".hmod"
	}
	container := append(append([]byte(nil), hdr...), body...)
	if err := os.WriteFile(out, container, 0o644); err != nil {
		return err
	}

	fmt.Printf("wrote %s (%d header + %d payload bytes)\n", out, len(hdr), len(body))
	return nil
}

func parseVersion(s string) (header.Version, error) {
	major, minor, ok := strings.Cut(s, ".")
	if !ok {
		return 0, fmt.Errorf("want major.minor, got %q", s)
	}
	var maj, min uint16
	if _, err := fmt.Sscanf(major, "%d", &maj); err != nil {
		return 0, fmt.Errorf("bad major %q", major)
	}
	if _, err := fmt.Sscanf(minor, "%d", &min); err != nil {
		return 0, fmt.Errorf("bad minor %q", minor)
	}
	return header.MakeVersion(maj, min), nil
}

func parseTypes(s string) (header.ModuleType, error) {
	var mask header.ModuleType
	for _, part := range strings.Split(s, ",") {
		bit, ok := header.TypeFromName(strings.TrimSpace(part))
		if !ok {
			return 0, fmt.Errorf("unknown type %q", part)
		}
		mask |= bit
	}
	return mask, nil
}
