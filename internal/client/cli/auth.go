package cli

import (
	"context"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for a name, email and password and creates the account.
// The new session is saved so the next start is already logged in. The
// password is wiped before returning.
func (a *App) Register(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Enter name", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer wipe(password)

	u, err := a.auth.Register(ctx, name, email, password)
	if err != nil {
		return err
	}
	a.setUser(u)

	printlnFn("Success! Logged in as", u.Email)
	return nil
}

// Login prompts for credentials and authenticates. The password is wiped
// before returning.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer wipe(password)

	u, err := a.auth.Login(ctx, email, password)
	if err != nil {
		return err
	}
	a.setUser(u)

	printlnFn("Login successful")
	return nil
}

// Logout leaves the open project, revokes the token and forgets the user.
// The local session is dropped even if the server call fails.
func (a *App) Logout(ctx context.Context) error {
	a.closeProject()
	err := a.auth.Logout(ctx)
	a.setUser(nil)
	if err != nil {
		return err
	}
	printlnFn("Logged out")
	return nil
}
