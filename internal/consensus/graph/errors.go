package graph

import parsecerrors "github.com/ruvnet/parsec/internal/errors"

var (
	errUnknownSelfParent  = parsecerrors.New(parsecerrors.UnknownSelfParent, "self_parent not found in graph")
	errUnknownOtherParent = parsecerrors.New(parsecerrors.UnknownOtherParent, "other_parent not found in graph")
)
