package main

import (
	"context"
	"fmt"

	"github.com/trezcool/academia/core/user"
)

func (cli *commandLine) enroll(uname, courseID string) error {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: uname})
	if err != nil {
		return err
	}
	enr, err := cli.crsSvc.Enroll(ctx, usr.ID, courseID)
	if err != nil {
		return err
	}
	fmt.Printf("%s enrolled in course %s\n", usr.Username, enr.CourseID)
	return nil
}
