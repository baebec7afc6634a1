package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/identity"
	testutil "github.com/trezcool/shule/tests"
)

var env = testutil.NewEnv()

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	env.Reset()
	var out bytes.Buffer
	return &commandLine{
		db:         &sql.DB{},
		out:        &out,
		validate:   env.Validate,
		translator: env.Translator,
		identities: env.Identities,
		importer:   env.Importer,
	}, &out
}

func testContext() context.Context {
	return context.Background()
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				if assert.Error(t, err) {
					assert.Equal(t, tt.wantErrStr, err.Error())
				}
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	runMigrationsFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
	}
	runCLITests(t, cli, tests)

	t.Run("in-memory store", func(t *testing.T) {
		cli.db = nil
		assert.EqualError(t, cli.run([]string{"admin", "migrate", "up"}), "migrations need a postgres database")
	})
}

type passwords []string

func mockPasswords(pwds passwords) {
	i := 0
	readPasswordFunc = func(fd int) ([]byte, error) {
		if i >= len(pwds) {
			return nil, nil
		}
		i++
		return []byte(pwds[i-1]), nil
	}
}

func Test_commandLine_createAdmin(t *testing.T) {
	cli, out := setup(t)

	tests := []struct {
		cliTest
		pwds passwords
	}{
		{cliTest: cliTest{name: "no args", args: []string{"createadmin"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "no password", args: []string{"createadmin", "-username", "root", "-email", "root@test.cd"}, wantErr: errHelp}},
		{
			cliTest: cliTest{name: "created", args: []string{"createadmin", "-username", "Root", "-email", "root@test.cd"}},
			pwds:    passwords{"Tr0ub4dor&3x", "Tr0ub4dor&3x"},
		},
	}
	for _, tt := range tests {
		mockPasswords(tt.pwds)
		runCLITests(t, cli, []cliTest{tt.cliTest})
	}

	t.Run("mismatch", func(t *testing.T) {
		mockPasswords(passwords{"Tr0ub4dor&3x", "nope"})
		err := cli.run([]string{"admin", "createadmin", "-username", "other", "-email", "other@test.cd"})
		assert.True(t, core.IsValidation(err))
	})

	idt, err := env.Identities.GetByUsernameOrEmail(testContext(), "root")
	require.NoError(t, err)
	assert.Equal(t, identity.RoleAdmin, idt.Role)
	assert.True(t, idt.IsActive)
	assert.NoError(t, idt.CheckPassword("Tr0ub4dor&3x"))
	assert.Contains(t, out.String(), `admin "root" created`)

	mockPasswords(passwords{"Tr0ub4dor&3x", "Tr0ub4dor&3x"})
	err = cli.run([]string{"admin", "createadmin", "-username", "root", "-email", "other@test.cd"})
	assert.True(t, core.IsValidation(err))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, _ := setup(t)
	idt := testutil.CreateIdentity(t, env.IdentityRepo, "awe", "awe@test.cd", "Old-Pa55word!", identity.RoleAdmin, "", true)

	tests := []struct {
		cliTest
		pwds passwords
	}{
		{cliTest: cliTest{name: "unknown command", args: []string{"lol"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "identity not found", args: []string{"resetpassword", "-username", "lol"}, wantErr: identity.ErrNotFound}, pwds: passwords{"lol"}},
		{cliTest: cliTest{name: "reset with username", args: []string{"resetpassword", "-username", idt.Username}}, pwds: passwords{"lol"}},
		{cliTest: cliTest{name: "reset with email", args: []string{"resetpassword", "-username", "AWE@test.cd"}}, pwds: passwords{"lmao"}},
	}
	for _, tt := range tests {
		mockPasswords(tt.pwds)
		runCLITests(t, cli, []cliTest{tt.cliTest})
	}

	refreshed, err := env.Identities.GetByID(testContext(), idt.ID)
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("lmao"))
}

func Test_commandLine_import(t *testing.T) {
	cli, out := setup(t)
	oak := env.ApprovedSchool(t, "Oak Elementary", "oak@ex.org")
	env.Mailer.Reset()

	dir, err := ioutil.TempDir("", "shule-import")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "teachers.csv")
	data := "First Name,Last Name,Phone,Email\nAda,Lovelace,+243 811 111 111,ada@ex.org\nAlan,Turing,,alan@ex.org\n"
	require.NoError(t, ioutil.WriteFile(path, []byte(data), 0o600))

	tests := []cliTest{
		{name: "no args", args: []string{"import"}, wantErr: errHelp},
		{name: "unknown kind", args: []string{"import", "-kind", "janitor", "-school", oak.ID, "-file", path}, wantErr: errHelp},
		{name: "unknown school", args: []string{"import", "-kind", "teacher", "-school", "nope", "-file", path}, wantErrStr: "school not found"},
		{name: "imported", args: []string{"import", "-kind", "teacher", "-school", oak.ID, "-file", path}},
	}
	runCLITests(t, cli, tests)

	assert.Contains(t, out.String(), "1 created, 1 skipped")
	assert.Contains(t, out.String(), "row 2: phone: this field is required")
	assert.Len(t, env.Mailer.SentTo("ada@ex.org"), 1)
}
