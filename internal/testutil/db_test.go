package testutil

import (
	"strings"
	"testing"
)

func TestDBName(t *testing.T) {
	if got := DBName("TestCreateFile/student key"); got != "ugt_TestCreateFile_student_key" {
		t.Errorf("DBName() = %q", got)
	}

	long := "TestCreateCategory_ConcurrentSiblings/" + strings.Repeat("x", 40)
	a, b := DBName(long+"/one"), DBName(long+"/two")
	if len(a) > 63 || len(b) > 63 {
		t.Errorf("len = %d, %d, want <= 63", len(a), len(b))
	}
	if a == b {
		t.Errorf("subtests share database %q", a)
	}
}
