package cli

import (
	"go.uber.org/zap"
)

type ErrorHandler struct {
	// Verbose prints the stack traces recorded by github.com/pkg/errors.
	Verbose       bool
	PostPrintHook func()
}

func (h ErrorHandler) PrintErr(err error) {
	if err == nil {
		return
	}
	h.printErr(err, 0)
	if h.PostPrintHook != nil {
		h.PostPrintHook()
	}
}

// printErr logs each error joined into err on its own line, numbering them when there is more than one.
func (h ErrorHandler) printErr(err error, num int) (nextNum int) {
	log := zap.L()

	errFmt := "%v"
	if h.Verbose {
		errFmt = "%+v"
	}

	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs := joined.Unwrap()
		switch len(errs) {
		case 0:
			return num
		case 1:
			return h.printErr(errs[0], num)
		default:
			log.Sugar().Errorf("%d errors:", len(errs))
			for _, e := range errs {
				num = h.printErr(e, num+1)
			}
			return num
		}
	}

	if num == 0 {
		log.Sugar().Errorf(errFmt, err)
	} else {
		log.Sugar().Errorf("[err %d] "+errFmt, num, err)
	}
	return num
}
