package main

import (
	"context"
	"fmt"
)

// addUser creates an account. Board members also need to be on the admin allow-list.
func (cli *commandLine) addUser(email, pwd string) error {
	id, err := cli.provider.Register(context.Background(), email, pwd)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "account %s created (uid %s)\n", id.Email, id.UID)
	if !cli.resolver.IsAdmin(id) {
		fmt.Fprintf(cli.out, "note: %s is not a board member; add it to auth.adminEmails to grant dashboard access\n", id.Email)
	}
	return nil
}
