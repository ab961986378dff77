package security

import (
	"strings"
	"testing"

	"github.com/blackcoderx/mfp/internal/mfperrors"
)

func TestValidateAllowsPlainCode(t *testing.T) {
	code := "result = sum(range(10))\n"
	if err := Validate(code); err != nil {
		t.Fatalf("expected no violation, got %v", err)
	}
}

func TestValidateAllowsGeneratedServerImport(t *testing.T) {
	code := "from weather.functions import get_weather\nresult = get_weather(city='nyc')\n"
	if err := Validate(code); err != nil {
		t.Fatalf("expected no violation for server module import, got %v", err)
	}
}

func TestValidateAllowsImportedNameCollidingWithBlockedModule(t *testing.T) {
	// Only the module path of a from-import is policed; imported names
	// that merely collide with a blocked token are legitimate.
	code := "from weather.functions import io, code\nresult = io\n"
	if err := Validate(code); err != nil {
		t.Fatalf("expected no violation for colliding imported names, got %v", err)
	}
}

func TestValidateBlocksImport(t *testing.T) {
	code := "import os\nresult=os.listdir('/')\n"
	err := Validate(code)
	if err == nil {
		t.Fatal("expected a security violation")
	}
	if mfperrors.ErrorType(err) != string(mfperrors.KindSecurityViolation) {
		t.Fatalf("expected security error type, got %v", mfperrors.ErrorType(err))
	}
	if !strings.Contains(err.Error(), "blocked_import") {
		t.Fatalf("expected blocked_import in error, got %v", err)
	}
}

func TestValidateBlocksFromImport(t *testing.T) {
	code := "from subprocess import run\nresult = run(['ls'])\n"
	if err := Validate(code); err == nil || !strings.Contains(err.Error(), "blocked_import") {
		t.Fatalf("expected blocked_import, got %v", err)
	}
}

func TestValidateBlocksCall(t *testing.T) {
	code := "result = eval('1+1')\n"
	if err := Validate(code); err == nil || !strings.Contains(err.Error(), "blocked_call") {
		t.Fatalf("expected blocked_call, got %v", err)
	}
}

func TestValidateBlocksOpenCall(t *testing.T) {
	code := "f = open('/etc/passwd')\nresult = f.read()\n"
	if err := Validate(code); err == nil || !strings.Contains(err.Error(), "blocked_call") {
		t.Fatalf("expected blocked_call for open(), got %v", err)
	}
}

func TestValidateBlocksAttributeRead(t *testing.T) {
	code := "result = (1).__class__\n"
	if err := Validate(code); err == nil || !strings.Contains(err.Error(), "blocked_attribute") {
		t.Fatalf("expected blocked_attribute, got %v", err)
	}
}

func TestValidateBlocksAttributeCall(t *testing.T) {
	code := "import json\nresult = json.loads('{}')\n" // sanity: allowed module
	if err := Validate(code); err != nil {
		t.Fatalf("json should be permitted, got %v", err)
	}

	code2 := "obj = {}\nresult = obj.__class__.__subclasses__()\n"
	if err := Validate(code2); err == nil || !strings.Contains(err.Error(), "blocked_attribute") {
		t.Fatalf("expected blocked_attribute(_call), got %v", err)
	}
}

func TestValidateBlocksGlobalAndNonlocal(t *testing.T) {
	code := "def f():\n    global x\n    x = 1\n"
	if err := Validate(code); err == nil || !strings.Contains(err.Error(), "blocked_global") {
		t.Fatalf("expected blocked_global, got %v", err)
	}

	code2 := "def outer():\n    x = 1\n    def inner():\n        nonlocal x\n        x = 2\n    inner()\n"
	if err := Validate(code2); err == nil || !strings.Contains(err.Error(), "blocked_nonlocal") {
		t.Fatalf("expected blocked_nonlocal, got %v", err)
	}
}

func TestValidateInvalidSyntax(t *testing.T) {
	code := "def f(:\n"
	if err := Validate(code); err == nil || !strings.Contains(err.Error(), "Invalid syntax") {
		t.Fatalf("expected invalid syntax violation, got %v", err)
	}
}
