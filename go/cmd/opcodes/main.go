package opcodes

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/lunixbochs/fvbommel-util/sortorder"

	"github.com/lunixbochs/x86emu/go/cmd"
	"github.com/lunixbochs/x86emu/go/cpu/x86"
	"github.com/lunixbochs/x86emu/go/cpu/x86/catalog"
)

// slotMarks shows which operand/address size combinations have a handler.
func slotMarks(d *catalog.Descriptor) string {
	var b strings.Builder
	for slot, h := range d.Handlers {
		op32, addr32 := catalog.SlotSizes(slot)
		switch {
		case h == nil:
			b.WriteByte('-')
		case op32 && addr32:
			b.WriteByte('D')
		case op32:
			b.WriteByte('d')
		case addr32:
			b.WriteByte('A')
		default:
			b.WriteByte('w')
		}
	}
	return b.String()
}

func Main(args []string) int {
	fs := flag.NewFlagSet(args[0], flag.ExitOnError)
	byName := fs.Bool("name", false, "sort by mnemonic instead of opcode")
	match := fs.String("match", "", "only list mnemonics containing this string")
	slots := fs.Bool("slots", false, "show implemented size slots (w=o16/a16 d=o32/a16 A=o16/a32 D=o32/a32)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\nOptions:\n", args[0])
		var flags []*flag.Flag
		fs.VisitAll(func(f *flag.Flag) { flags = append(flags, f) })
		cmd.PrintFlags(os.Stderr, flags)
	}
	fs.Parse(args[1:])

	var descs []*catalog.Descriptor
	for _, d := range x86.DefaultTables().Descriptors() {
		if *match == "" || strings.Contains(d.Name, *match) {
			descs = append(descs, d)
		}
	}
	if *byName {
		sort.SliceStable(descs, func(i, j int) bool {
			return sortorder.NaturalLess(descs[i].Name, descs[j].Name)
		})
	}
	for _, d := range descs {
		if *slots {
			fmt.Printf("%s  %s\n", slotMarks(d), d)
		} else {
			fmt.Println(d)
		}
	}
	fmt.Fprintf(os.Stderr, "%d opcodes\n", len(descs))
	return 0
}

func init() { cmd.Register("catalog", "list the opcode catalog", Main) }
