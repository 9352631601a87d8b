package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	if err := cli.provider.SetPassword(context.Background(), email, pwd); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "password updated")
	return nil
}
