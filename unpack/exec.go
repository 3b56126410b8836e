package unpack

import (
	"context"
	"debug/elf"
	"debug/pe"
)

// PEUnpacker inspects PE executables.
//
// It has no members; it reports an anomaly if the entry point lies outside every
// section, which is typical of some packers and file infectors.
type PEUnpacker struct{}

var _ Unpacker = (*PEUnpacker)(nil)

// Family implements [Unpacker].
func (*PEUnpacker) Family() Family { return PE }

// Anomaly names.
const (
	AnomalyPEEntryPoint  = "Heuristics.PE.EntryPoint"
	AnomalyELFEntryPoint = "Heuristics.ELF.EntryPoint"
)

// Unpack implements [Unpacker].
func (*PEUnpacker) Unpack(ctx context.Context, src Source, sink Sink) error {
	f, err := pe.NewFile(src)
	if err != nil {
		return broken(PE, err)
	}
	defer f.Close()
	var entry uint32
	switch h := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		entry = h.AddressOfEntryPoint
	case *pe.OptionalHeader64:
		entry = h.AddressOfEntryPoint
	default:
		return brokenf(PE, "missing optional header")
	}
	if entry == 0 { // e.g. resource-only DLLs
		return nil
	}
	for _, s := range f.Sections {
		sz := max(s.VirtualSize, s.Size)
		if entry >= s.VirtualAddress && entry-s.VirtualAddress < sz {
			return nil
		}
	}
	sink.Anomaly(ctx, AnomalyPEEntryPoint)
	return nil
}

// ELFUnpacker inspects ELF objects.
//
// Like [PEUnpacker], it only reports an anomaly if the entry point is outside
// every loadable segment.
type ELFUnpacker struct{}

var _ Unpacker = (*ELFUnpacker)(nil)

// Family implements [Unpacker].
func (*ELFUnpacker) Family() Family { return ELF }

// Unpack implements [Unpacker].
func (*ELFUnpacker) Unpack(ctx context.Context, src Source, sink Sink) error {
	f, err := elf.NewFile(src)
	if err != nil {
		return broken(ELF, err)
	}
	defer f.Close()
	if f.Type != elf.ET_EXEC && f.Type != elf.ET_DYN {
		return nil
	}
	if f.Entry == 0 {
		return nil
	}
	loads := 0
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		loads++
		if f.Entry >= p.Vaddr && f.Entry-p.Vaddr < p.Memsz {
			return nil
		}
	}
	if loads == 0 {
		return brokenf(ELF, "executable without loadable segments")
	}
	sink.Anomaly(ctx, AnomalyELFEntryPoint)
	return nil
}
