package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) disable(email string, disabled bool) error {
	if err := cli.provider.SetDisabled(context.Background(), email, disabled); err != nil {
		return err
	}
	if disabled {
		fmt.Fprintf(cli.out, "account %s disabled\n", email)
	} else {
		fmt.Fprintf(cli.out, "account %s enabled\n", email)
	}
	return nil
}
