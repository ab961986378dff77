// Package security is the static AST-level guard submitted programs
// must pass before reaching the sandbox. It parses the program with
// tree-sitter's Python grammar (the same library internal/registry uses
// for snippet extraction) and walks every node in deterministic
// pre-order, stopping at the first offending construct.
package security

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/blackcoderx/mfp/internal/mfperrors"
)

// BlockedModules is the set of top-level modules an import must not
// name: process/filesystem access, raw networking, reflection/debug,
// serialization-with-execution, concurrency, low-level, web frameworks.
var BlockedModules = map[string]bool{
	"os": true, "sys": true, "subprocess": true, "shutil": true,
	"pathlib": true, "glob": true, "tempfile": true, "io": true,
	"socket": true, "urllib": true, "http": true, "requests": true, "aiohttp": true,
	"inspect": true, "ast": true, "pdb": true, "dis": true, "gc": true, "code": true,
	"pickle": true, "marshal": true, "shelve": true,
	"threading": true, "multiprocessing": true,
	"ctypes": true, "signal": true, "resource": true,
	"flask": true, "django": true, "fastapi": true, "starlette": true, "tornado": true,
	"builtins": true, "importlib": true,
}

// BlockedCalls is the set of forbidden directly-called names.
// "__import__" is the dynamic-import builtin.
var BlockedCalls = map[string]bool{
	"eval": true, "exec": true, "compile": true, "open": true,
	"input": true, "breakpoint": true, "vars": true, "dir": true,
	"globals": true, "locals": true, "__import__": true,
}

// BlockedAttributes is the set of attribute names whose read or
// method-call access is forbidden: class-introspection dunders plus
// environment/process access.
var BlockedAttributes = map[string]bool{
	"__class__": true, "__subclasses__": true, "__globals__": true,
	"__builtins__": true, "__mro__": true, "__bases__": true,
	"__dict__": true, "__loader__": true, "__spec__": true, "__import__": true,
	"environ": true, "system": true, "popen": true, "spawn": true,
	"fork": true, "kill": true, "getenv": true, "setenv": true, "putenv": true,
}

// Violation is a single rule match, including the category token the
// meta-tool surface and tests key off of.
type Violation struct {
	Category string // e.g. "blocked_import", "blocked_call"
	Detail   string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Category, v.Detail)
}

// Validate parses code and returns nil, or an *mfperrors.MFPError
// (KindSecurityViolation) describing the first violation encountered in a
// deterministic pre-order walk.
func Validate(code string) error {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(code))
	if err != nil || tree == nil {
		return mfperrors.NewSecurityViolation("Invalid syntax: failed to parse program")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return mfperrors.NewSecurityViolation("Invalid syntax: program contains a syntax error")
	}

	src := []byte(code)
	if v := walk(root, src); v != nil {
		return mfperrors.NewSecurityViolation(v.String())
	}
	return nil
}

// walk performs the deterministic pre-order scan, returning the first
// Violation found or nil.
func walk(node *sitter.Node, src []byte) *Violation {
	if node == nil {
		return nil
	}

	if v := checkNode(node, src); v != nil {
		return v
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		if v := walk(node.Child(i), src); v != nil {
			return v
		}
	}
	return nil
}

func checkNode(node *sitter.Node, src []byte) *Violation {
	switch node.Type() {
	case "import_statement", "import_from_statement":
		return checkImport(node, src)
	case "call":
		return checkCall(node, src)
	case "attribute":
		return checkAttribute(node, src)
	case "global_statement":
		return &Violation{Category: "blocked_global", Detail: "use of 'global' is not allowed"}
	case "nonlocal_statement":
		return &Violation{Category: "blocked_nonlocal", Detail: "use of 'nonlocal' is not allowed"}
	}
	return nil
}

// checkImport inspects "import x[.y]" and "from x[.y] import ..." for a
// top-level module name in BlockedModules. Only the leading dotted-path
// component counts as the top-level module, and for a from-import only
// the module path is checked: imported names that merely collide with a
// blocked token (from mypkg import io) are fine.
func checkImport(node *sitter.Node, src []byte) *Violation {
	if node.Type() == "import_from_statement" {
		module := node.ChildByFieldName("module_name")
		if module == nil {
			return nil
		}
		name := topLevelName(module, src)
		if BlockedModules[name] {
			return &Violation{Category: "blocked_import", Detail: fmt.Sprintf("module %q is not allowed", name)}
		}
		return nil
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name", "aliased_import":
			name := topLevelName(child, src)
			if BlockedModules[name] {
				return &Violation{Category: "blocked_import", Detail: fmt.Sprintf("module %q is not allowed", name)}
			}
		}
	}
	return nil
}

// topLevelName extracts the first identifier of a dotted_name (or of the
// dotted_name inside an aliased_import), i.e. "os" from "os.path as p".
func topLevelName(node *sitter.Node, src []byte) string {
	target := node
	if node.Type() == "aliased_import" {
		target = node.ChildByFieldName("name")
		if target == nil {
			return ""
		}
	}
	if target.Type() == "identifier" {
		return string(src[target.StartByte():target.EndByte()])
	}
	if target.ChildCount() > 0 {
		first := target.Child(0)
		return string(src[first.StartByte():first.EndByte()])
	}
	return string(src[target.StartByte():target.EndByte()])
}

// checkCall inspects a direct call's callee identifier against
// BlockedCalls, and (since attribute-call callees are "attribute" nodes)
// defers attribute-method checks to checkAttribute, which already fires
// independently during the walk.
func checkCall(node *sitter.Node, src []byte) *Violation {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return nil
	}
	if fn.Type() != "identifier" {
		return nil
	}
	name := string(src[fn.StartByte():fn.EndByte()])
	if BlockedCalls[name] {
		return &Violation{Category: "blocked_call", Detail: fmt.Sprintf("call to %q is not allowed", name)}
	}
	return nil
}

// checkAttribute inspects "obj.attr" reads (and, since a call on an
// attribute is itself an "attribute" child of a "call" node, method calls
// too) against BlockedAttributes.
func checkAttribute(node *sitter.Node, src []byte) *Violation {
	attr := node.ChildByFieldName("attribute")
	if attr == nil {
		return nil
	}
	name := string(src[attr.StartByte():attr.EndByte()])
	if !BlockedAttributes[name] {
		return nil
	}
	category := "blocked_attribute"
	if isCallTarget(node) {
		category = "blocked_attribute_call"
	}
	return &Violation{Category: category, Detail: fmt.Sprintf("attribute %q is not allowed", name)}
}

// isCallTarget reports whether node is the function expression of its
// parent "call" node.
func isCallTarget(node *sitter.Node) bool {
	parent := node.Parent()
	if parent == nil || parent.Type() != "call" {
		return false
	}
	fn := parent.ChildByFieldName("function")
	return fn != nil && fn.StartByte() == node.StartByte() && fn.EndByte() == node.EndByte()
}
