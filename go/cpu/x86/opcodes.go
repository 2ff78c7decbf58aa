package x86

import (
	"fmt"

	"github.com/lunixbochs/x86emu/go/cpu/x86/catalog"
)

type opTable struct {
	descs []*catalog.Descriptor
}

func (t *opTable) add(format, name string, handlers ...interface{}) *catalog.Descriptor {
	d := catalog.MustParse(format)
	if err := d.Bind(name, handlers...); err != nil {
		panic(err)
	}
	t.descs = append(t.descs, d)
	return d
}

func (t *opTable) prefix(format, name string, h func(*Machine)) {
	t.add(format, name, h).Prefix = true
}

func ud2(m *Machine) { m.undefined() }

// Opcodes returns the descriptors of the built-in instruction set, with
// register-coded families not yet expanded.
func Opcodes() []*catalog.Descriptor {
	var t opTable

	for i, op := range aluOps {
		base := i * 8
		t.add(fmt.Sprintf("%02X /r rmb,rb", base), op.name, op.b)
		t.add(fmt.Sprintf("%02X /r rmw,rw", base+1), op.name, op.w, op.d)
		t.add(fmt.Sprintf("%02X /r rb,rmb", base+2), op.name, op.b)
		t.add(fmt.Sprintf("%02X /r rw,rmw", base+3), op.name, op.w, op.d)
		t.add(fmt.Sprintf("%02X al,ib", base+4), op.name, op.b)
		t.add(fmt.Sprintf("%02X ax,iw", base+5), op.name, op.w, op.d)
		t.add(fmt.Sprintf("80 /%d rmb,ib", i), op.name, op.b)
		t.add(fmt.Sprintf("81 /%d rmw,iw", i), op.name, op.w, op.d)
		t.add(fmt.Sprintf("82 /%d rmb,ib", i), op.name, op.b)
		t.add(fmt.Sprintf("83 /%d rmw,ibs", i), op.name, op.w, op.d)
	}

	segs := []struct {
		push, pop, reg string
	}{
		{"06", "07", "es"}, {"0E", "", "cs"}, {"16", "17", "ss"}, {"1E", "1F", "ds"},
		{"0F A0", "0F A1", "fs"}, {"0F A8", "0F A9", "gs"},
	}
	for _, s := range segs {
		t.add(s.push+" "+s.reg, "push", pushSeg[uint16], pushSeg[uint32])
		if s.pop != "" {
			t.add(s.pop+" "+s.reg, "pop", popSeg[uint16], popSeg[uint32])
		}
	}
	for _, p := range []struct {
		op  string
		seg int
	}{{"26", ES}, {"2E", CS}, {"36", SS}, {"3E", DS}, {"64", FS}, {"65", GS}} {
		t.prefix(p.op, catalog.SegmentRegisters[p.seg].Name+":", segPrefix(p.seg))
	}
	t.prefix("66", "data16/32", opsizePrefix)
	t.prefix("67", "addr16/32", addrsizePrefix)
	t.prefix("F0", "lock", lockPrefix)
	t.prefix("F2", "repne", repnePrefix)
	t.prefix("F3", "rep", repPrefix)

	t.add("27", "daa", daa)
	t.add("2F", "das", das)
	t.add("37", "aaa", aaa)
	t.add("3F", "aas", aas)

	t.add("40+ rw", "inc", inc[uint16], inc[uint32])
	t.add("48+ rw", "dec", dec[uint16], dec[uint32])
	t.add("50+ rw", "push", push[uint16], push[uint32])
	t.add("58+ rw", "pop", pop[uint16], pop[uint32])
	t.add("60", "pusha", pusha[uint16], pusha[uint32])
	t.add("61", "popa", popa[uint16], popa[uint32])
	t.add("68 iw", "push", push[uint16], push[uint32])
	t.add("69 /r rw,rmw,iw", "imul", imul3[uint16], imul3[uint32])
	t.add("6A ibs", "push", push[uint16], push[uint32])
	t.add("6B /r rw,rmw,ibs", "imul", imul3[uint16], imul3[uint32])

	for _, s := range stringOps {
		t.add(fmt.Sprintf("%02X", s.base), s.name+"b", s.b[0], s.b[0], s.b[1], s.b[1])
		t.add(fmt.Sprintf("%02X", s.base+1), s.name+"w", s.w[0], s.w[1], s.w[2], s.w[3])
	}

	for cc := 0; cc < 16; cc++ {
		name := "j" + conditionNames[cc]
		t.add(fmt.Sprintf("%02X relb", 0x70+cc), name, jcc[uint16](cc), jcc[uint32](cc))
		t.add(fmt.Sprintf("0F %02X relw", 0x80+cc), name, jcc[uint16](cc), jcc[uint32](cc))
		t.add(fmt.Sprintf("0F %02X /r rmb", 0x90+cc), "set"+conditionNames[cc], setcc(cc))
	}

	t.add("84 /r rmb,rb", "test", test[uint8])
	t.add("85 /r rmw,rw", "test", test[uint16], test[uint32])
	t.add("86 /r rmb,rb", "xchg", xchg[uint8])
	t.add("87 /r rmw,rw", "xchg", xchg[uint16], xchg[uint32])
	t.add("88 /r rmb,rb", "mov", mov[uint8])
	t.add("89 /r rmw,rw", "mov", mov[uint16], mov[uint32])
	t.add("8A /r rb,rmb", "mov", mov[uint8])
	t.add("8B /r rw,rmw", "mov", mov[uint16], mov[uint32])
	t.add("8C /r rm16,sreg", "mov", mov[uint16])
	t.add("8D /r rw,m", "lea", mov[uint16], mov[uint32])
	t.add("8E /r sreg,rm16", "mov", mov[uint16])
	t.add("8F /0 rmw", "pop", pop[uint16], pop[uint32])
	t.add("90+ ax,rw", "xchg", xchg[uint16], xchg[uint32])
	t.add("98", "cbw", cbw, cwde)
	t.add("99", "cwd", cwd, cdq)
	t.add("9A ptr", "call", callFar[uint16], callFar[uint32])
	t.add("9B", "fwait", nop)
	t.add("9C", "pushf", pushf[uint16], pushf[uint32])
	t.add("9D", "popf", popf[uint16], popf[uint32])
	t.add("9E", "sahf", sahf)
	t.add("9F", "lahf", lahf)
	t.add("A0 al,moffsb", "mov", mov[uint8])
	t.add("A1 ax,moffsw", "mov", mov[uint16], mov[uint32])
	t.add("A2 moffsb,al", "mov", mov[uint8])
	t.add("A3 moffsw,ax", "mov", mov[uint16], mov[uint32])
	t.add("A8 al,ib", "test", test[uint8])
	t.add("A9 ax,iw", "test", test[uint16], test[uint32])
	t.add("B0+ rb,ib", "mov", mov[uint8])
	t.add("B8+ rw,iw", "mov", mov[uint16], mov[uint32])

	for i, op := range group2 {
		t.add(fmt.Sprintf("C0 /%d rmb,ib", i), op.name, op.b)
		t.add(fmt.Sprintf("C1 /%d rmw,ib", i), op.name, op.w, op.d)
		t.add(fmt.Sprintf("D0 /%d rmb,1", i), op.name, op.b)
		t.add(fmt.Sprintf("D1 /%d rmw,1", i), op.name, op.w, op.d)
		t.add(fmt.Sprintf("D2 /%d rmb,cl", i), op.name, op.b)
		t.add(fmt.Sprintf("D3 /%d rmw,cl", i), op.name, op.w, op.d)
	}

	t.add("C2 i16", "ret", retImm[uint16], retImm[uint32])
	t.add("C3", "ret", ret[uint16], ret[uint32])
	t.add("C4 /r rw,mfar", "les", loadFar[uint16](ES), loadFar[uint32](ES))
	t.add("C5 /r rw,mfar", "lds", loadFar[uint16](DS), loadFar[uint32](DS))
	t.add("C6 /0 rmb,ib", "mov", mov[uint8])
	t.add("C7 /0 rmw,iw", "mov", mov[uint16], mov[uint32])
	t.add("C8 i16,ib", "enter", enter[uint16], enter[uint32])
	t.add("C9", "leave", leave[uint16], leave[uint32])
	t.add("CA i16", "retf", retfImm[uint16], retfImm[uint32])
	t.add("CB", "retf", retf[uint16], retf[uint32])
	t.add("CC", "int3", int3)
	t.add("CD ib", "int", intN)
	t.add("CE", "into", into)
	t.add("CF", "iret", iret, nil, iret, nil)

	t.add("D4 ib", "aam", aam)
	t.add("D5 ib", "aad", aad)
	t.add("D6", "salc", salc)
	t.add("D7", "xlat", xlat)

	t.add("E0 relb", "loopne", loopne[uint16], loopne[uint32])
	t.add("E1 relb", "loope", loope[uint16], loope[uint32])
	t.add("E2 relb", "loop", loop[uint16], loop[uint32])
	t.add("E3 relb", "jcxz", jcxz[uint16], jcxz[uint32])
	t.add("E4 al,ib", "in", in[uint8, uint8])
	t.add("E5 ax,ib", "in", in[uint16, uint8], in[uint32, uint8])
	t.add("E6 ib,al", "out", out[uint8, uint8])
	t.add("E7 ib,ax", "out", out[uint8, uint16], out[uint8, uint32])
	t.add("E8 relw", "call", call[uint16], call[uint32])
	t.add("E9 relw", "jmp", jmp[uint16], jmp[uint32])
	t.add("EA ptr", "jmp", jmpFar)
	t.add("EB relb", "jmp", jmp[uint16], jmp[uint32])
	t.add("EC al,dx", "in", in[uint8, uint16], in[uint8, uint32])
	t.add("ED ax,dx", "in", in[uint16, uint16], in[uint32, uint32])
	t.add("EE dx,al", "out", out[uint16, uint8], out[uint32, uint8])
	t.add("EF dx,ax", "out", out[uint16, uint16], out[uint32, uint32])

	t.add("F4", "hlt", hlt)
	t.add("F5", "cmc", cmc)
	for i, op := range group3 {
		if op.b == nil {
			t.add(fmt.Sprintf("F6 /%d rmb,ib", i), op.name, test[uint8])
			t.add(fmt.Sprintf("F7 /%d rmw,iw", i), op.name, test[uint16], test[uint32])
			continue
		}
		t.add(fmt.Sprintf("F6 /%d rmb", i), op.name, op.b)
		t.add(fmt.Sprintf("F7 /%d rmw", i), op.name, op.w, op.d)
	}
	t.add("F8", "clc", clc)
	t.add("F9", "stc", stc)
	t.add("FA", "cli", cli)
	t.add("FB", "sti", sti)
	t.add("FC", "cld", cld)
	t.add("FD", "std", std)
	t.add("FE /0 rmb", "inc", inc[uint8])
	t.add("FE /1 rmb", "dec", dec[uint8])
	t.add("FF /0 rmw", "inc", inc[uint16], inc[uint32])
	t.add("FF /1 rmw", "dec", dec[uint16], dec[uint32])
	t.add("FF /2 rmw", "call", call[uint16], call[uint32])
	t.add("FF /3 mfar", "call", callFar[uint16], callFar[uint32])
	t.add("FF /4 rmw", "jmp", jmp[uint16], jmp[uint32])
	t.add("FF /5 mfar", "jmp", jmpFar)
	t.add("FF /6 rmw", "push", push[uint16], push[uint32])

	// two-byte system and 386 instructions
	t.add("0F 01 /0 mdesc", "sgdt", sgdt)
	t.add("0F 01 /1 mdesc", "sidt", sidt)
	t.add("0F 01 /2 mdesc", "lgdt", lgdt)
	t.add("0F 01 /3 mdesc", "lidt", lidt)
	t.add("0F 01 /4 rm16", "smsw", smsw)
	t.add("0F 01 /6 rm16", "lmsw", lmsw)
	t.add("0F 01 /7 m", "invlpg", invlpg[uint16], invlpg[uint32])
	t.add("0F 06", "clts", clts)
	t.add("0F 08", "invd", nop)
	t.add("0F 09", "wbinvd", nop)
	t.add("0F 0B", "ud2", ud2)
	t.add("0F 20 /r rrm,creg", "mov", mov[uint32])
	t.add("0F 21 /r rrm,dreg", "mov", mov[uint32])
	t.add("0F 22 /r creg,rrm", "mov", mov[uint32])
	t.add("0F 23 /r dreg,rrm", "mov", mov[uint32])
	t.add("0F 31", "rdtsc", rdtsc)
	t.add("0F A2", "cpuid", cpuid)
	t.add("0F A3 /r rmw,rw", "bt", bt[uint16, uint16], bt[uint32, uint32])
	t.add("0F AB /r rmw,rw", "bts", bts[uint16, uint16], bts[uint32, uint32])
	t.add("0F B3 /r rmw,rw", "btr", btr[uint16, uint16], btr[uint32, uint32])
	t.add("0F BB /r rmw,rw", "btc", btc[uint16, uint16], btc[uint32, uint32])
	t.add("0F BA /4 rmw,ib", "bt", bt[uint16, uint8], bt[uint32, uint8])
	t.add("0F BA /5 rmw,ib", "bts", bts[uint16, uint8], bts[uint32, uint8])
	t.add("0F BA /6 rmw,ib", "btr", btr[uint16, uint8], btr[uint32, uint8])
	t.add("0F BA /7 rmw,ib", "btc", btc[uint16, uint8], btc[uint32, uint8])
	t.add("0F A4 /r rmw,rw,ib", "shld", shld[uint16], shld[uint32])
	t.add("0F A5 /r rmw,rw,cl", "shld", shld[uint16], shld[uint32])
	t.add("0F AC /r rmw,rw,ib", "shrd", shrd[uint16], shrd[uint32])
	t.add("0F AD /r rmw,rw,cl", "shrd", shrd[uint16], shrd[uint32])
	t.add("0F AF /r rw,rmw", "imul", imul2[uint16], imul2[uint32])
	t.add("0F B0 /r rmb,rb", "cmpxchg", cmpxchg[uint8])
	t.add("0F B1 /r rmw,rw", "cmpxchg", cmpxchg[uint16], cmpxchg[uint32])
	t.add("0F B2 /r rw,mfar", "lss", loadFar[uint16](SS), loadFar[uint32](SS))
	t.add("0F B4 /r rw,mfar", "lfs", loadFar[uint16](FS), loadFar[uint32](FS))
	t.add("0F B5 /r rw,mfar", "lgs", loadFar[uint16](GS), loadFar[uint32](GS))
	t.add("0F B6 /r rw,rmb", "movzx", movzx[uint16, uint8], movzx[uint32, uint8])
	t.add("0F B7 /r rw,rm16", "movzx", movzx[uint16, uint16], movzx[uint32, uint16])
	t.add("0F BE /r rw,rmb", "movsx", movsx[uint16, uint8], movsx[uint32, uint8])
	t.add("0F BF /r rw,rm16", "movsx", movsx[uint16, uint16], movsx[uint32, uint16])
	t.add("0F BC /r rw,rmw", "bsf", bsf[uint16], bsf[uint32])
	t.add("0F BD /r rw,rmw", "bsr", bsr[uint16], bsr[uint32])
	t.add("0F C0 /r rmb,rb", "xadd", xadd[uint8])
	t.add("0F C1 /r rmw,rw", "xadd", xadd[uint16], xadd[uint32])
	t.add("0F C8+ rd", "bswap", bswap)

	// x87
	for i, op := range fpuArith {
		if op.op == nil {
			compare := fcom
			if i == 3 {
				compare = fcomp
			}
			t.add(fmt.Sprintf("D8 /%d m32", i), op.name, compare)
			t.add(fmt.Sprintf("DC /%d m64", i), op.name, compare)
			t.add(fmt.Sprintf("D8 %02X+ sti", 0xc0+i*8), op.name, compare)
			continue
		}
		t.add(fmt.Sprintf("D8 /%d st,m32", i), op.name, op.op)
		t.add(fmt.Sprintf("DC /%d st,m64", i), op.name, op.op)
		t.add(fmt.Sprintf("D8 %02X+ st,sti", 0xc0+i*8), op.name, op.op)
		// register forms with ST(i) as destination swap sub/subr and div/divr
		rev := op
		if i >= 4 {
			rev = fpuArith[i^1]
		}
		t.add(fmt.Sprintf("DC %02X+ sti,st", 0xc0+i*8), rev.name, rev.op)
		t.add(fmt.Sprintf("DE %02X+ sti,st", 0xc0+i*8), rev.name+"p", thenPop(rev.op))
	}
	t.add("D9 /0 m32", "fld", fld)
	t.add("D9 /2 m32", "fst", fst)
	t.add("D9 /3 m32", "fstp", fstp)
	t.add("D9 /5 m16", "fldcw", fldcw)
	t.add("D9 /7 m16", "fnstcw", fnstcw)
	t.add("D9 C0+ sti", "fld", fld)
	t.add("D9 C8+ sti", "fxch", fxch)
	t.add("D9 D0", "fnop", nop)
	t.add("D9 E0", "fchs", fchs)
	t.add("D9 E1", "fabs", fabs)
	t.add("D9 E4", "ftst", ftst)
	t.add("D9 E8", "fld1", fld1)
	t.add("D9 E9", "fldl2t", fldl2t)
	t.add("D9 EA", "fldl2e", fldl2e)
	t.add("D9 EB", "fldpi", fldpi)
	t.add("D9 EC", "fldlg2", fldlg2)
	t.add("D9 ED", "fldln2", fldln2)
	t.add("D9 EE", "fldz", fldz)
	t.add("D9 FA", "fsqrt", fsqrt)
	t.add("D9 FC", "frndint", frndint)
	t.add("DB /0 m32", "fild", fild[uint32])
	t.add("DB /2 m32", "fist", fist[uint32])
	t.add("DB /3 m32", "fistp", fistp[uint32])
	t.add("DB /5 m80", "fld", fld)
	t.add("DB /7 m80", "fstp", fstp)
	t.add("DB E2", "fnclex", fnclex)
	t.add("DB E3", "fninit", fninit)
	t.add("DD /0 m64", "fld", fld)
	t.add("DD /2 m64", "fst", fst)
	t.add("DD /3 m64", "fstp", fstp)
	t.add("DD /7 m16", "fnstsw", fnstsw)
	t.add("DD D0+ sti", "fst", fst)
	t.add("DD D8+ sti", "fstp", fstp)
	t.add("DE D9", "fcompp", fcompp)
	t.add("DF /0 m16", "fild", fild[uint16])
	t.add("DF /2 m16", "fist", fist[uint16])
	t.add("DF /3 m16", "fistp", fistp[uint16])
	t.add("DF /5 m64", "fild", fild[uint64])
	t.add("DF /7 m64", "fistp", fistp[uint64])
	t.add("DF E0", "fnstsw", fnstswAX)

	return t.descs
}
