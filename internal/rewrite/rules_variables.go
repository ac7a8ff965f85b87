package rewrite

import (
	"fmt"
	"sort"

	"sqlbridge/internal/extract"
)

// matchDeclare inlines script variables whose every assignment is a single
// literal: each read becomes the latest preceding literal, in program order,
// and the now-dead declarations are removed. Variables that cannot be
// determined statically stay as named placeholders and are flagged.
func matchDeclare(a *extract.Analysis, r *boundRule) Finding {
	var f Finding

	execVars := make(map[string]bool)
	for _, ec := range a.ExecCalls {
		if ec.VarName != "" {
			execVars[ec.VarName] = true
		}
	}

	byName := make(map[string][]extract.VarAssign)
	declStart := make(map[int]int) // statement start offset -> vars declared there
	for _, va := range a.VarAssigns {
		byName[va.Name] = append(byName[va.Name], va)
		declStart[va.Span.Start]++
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	for name := range a.VarReads {
		if _, ok := byName[name]; !ok {
			names = append(names, name)
		}
	}
	for name := range a.SelectAssigns {
		if _, inAssigns := byName[name]; inAssigns {
			continue
		}
		if _, inReads := a.VarReads[name]; inReads {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		// Variables feeding EXEC belong to the dynamic SQL rule.
		if execVars[name] {
			continue
		}
		// An "@v = expr" outside DECLARE/SET reassigns the variable (or
		// compares it); its value cannot be inlined either way.
		if sp, ok := a.SelectAssigns[name]; ok {
			f.flag(r, sp,
				fmt.Sprintf("variable %s is assigned outside DECLARE/SET; left as a placeholder", name))
			continue
		}
		assigns := byName[name]
		reads := a.VarReads[name]

		if len(assigns) == 0 {
			f.flag(r, reads[0], fmt.Sprintf("variable %s has no assignment in this script", name))
			continue
		}
		determinable := true
		for _, va := range assigns {
			if !va.Literal {
				determinable = false
				break
			}
		}
		if !determinable {
			f.flag(r, assigns[0].Span,
				fmt.Sprintf("variable %s is not statically determinable; left as a placeholder", name))
			continue
		}

		bad := false
		for _, read := range reads {
			if latestAssign(assigns, read.Start) == nil {
				f.flag(r, read, fmt.Sprintf("variable %s is read before its first assignment", name))
				bad = true
				break
			}
		}
		if bad {
			continue
		}

		for _, read := range reads {
			va := latestAssign(assigns, read.Start)
			f.patch(r, read, va.LiteralText, "")
		}
		for _, va := range assigns {
			if declStart[va.Span.Start] > 1 {
				f.flag(r, va.Span,
					fmt.Sprintf("multi-variable declaration kept; remove %s manually", name))
				continue
			}
			f.patch(r, swallowSemicolon(a, va.Span), "",
				fmt.Sprintf("literal declaration of %s removed after inlining", name))
		}
	}
	return f
}

// latestAssign returns the last assignment completed before the read at
// offset pos, or nil.
func latestAssign(assigns []extract.VarAssign, pos int) *extract.VarAssign {
	var latest *extract.VarAssign
	for i := range assigns {
		if assigns[i].Span.End <= pos {
			latest = &assigns[i]
		}
	}
	return latest
}

// matchDynamicSQL flags executed variables. Variables assembled inside the
// script can at least be reviewed against their assignments; variables
// assigned elsewhere are unresolvable without cross-scope data flow.
func matchDynamicSQL(a *extract.Analysis, r *boundRule) Finding {
	var f Finding
	for _, ec := range a.ExecCalls {
		if ec.VarName == "" {
			continue
		}
		switch {
		case !a.HasAssignment(ec.VarName):
			f.unresolved(ec.Span, "dynamic SQL",
				fmt.Sprintf("cross-scope dynamic SQL: executed variable %s is assigned outside this script", ec.VarName))
		case a.AssignedFromConcat(ec.VarName):
			f.flag(r, ec.Span,
				"dynamic SQL assembled by concatenation; verify the final statement text")
		default:
			f.flag(r, ec.Span, "dynamic SQL execution; verify the executed text manually")
		}
	}
	return f
}
