package actions

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	h "github.com/relloyd/scdpipe/helper"
	"github.com/relloyd/scdpipe/logger"
	"github.com/relloyd/scdpipe/rdbms"
)

type WebServerResponse uint32

const (
	Okay WebServerResponse = iota + 1
	Error
)

func (w WebServerResponse) MarshalJSON() ([]byte, error) {
	var retval string
	switch w {
	case Okay:
		retval = "ok"
	case Error:
		retval = "error"
	default:
		err := fmt.Errorf("unhandled WebServerResponse value in MarshalJSON() conversion")
		return nil, err
	}
	return json.Marshal(retval)
}

type ResponseSimple struct {
	ServerStatus WebServerResponse `json:"status"`
}

type ResponseRunLaunch struct {
	Status  WebServerResponse `json:"status"`
	Message string            `json:"message"`
	RunDate string            `json:"runDate,omitempty"`
}

type ResponseRunStatus struct {
	Status  WebServerResponse   `json:"status"`
	Message string              `json:"message"`
	RunDate string              `json:"runDate,omitempty"`
	Runs    []rdbms.RunLogEntry `json:"runs"`
}

func GetHandlerHealth(log logger.Logger) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseSimple{ServerStatus: Okay})
	}
}

func GetHandlerStopServer(log logger.Logger, chanStop chan string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		chanStop <- "stop"
		log.Info("Stop signal sent")
		respond(log, w, ResponseSimple{ServerStatus: Okay})
	}
}

// GetHandlerRunLaunch starts a run for the date in the URL without waiting for it to finish.
func GetHandlerRunLaunch(log logger.Logger, svc *runService) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		date := mux.Vars(r)["runDate"]
		d, err := h.ParseRunDate(date)
		if err != nil {
			logAndRespond(log, err, w, http.StatusBadRequest,
				ResponseRunLaunch{Status: Error, Message: err.Error(), RunDate: date})
			return
		}
		if !svc.launch(d) {
			log.Info("HTTP request to run ", date, " rejected while another run is in progress")
			w.WriteHeader(http.StatusConflict)
			respond(log, w, ResponseRunLaunch{Status: Error, Message: "a run is already in progress", RunDate: date})
			return
		}
		w.WriteHeader(http.StatusAccepted)
		respond(log, w, ResponseRunLaunch{Status: Okay, Message: "run launched", RunDate: h.FormatDate(d)})
	}
}

// GetHandlerRunStatus returns the run log rows of the date in the URL.
func GetHandlerRunStatus(log logger.Logger, runs RunLister) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		date := mux.Vars(r)["runDate"]
		d, err := h.ParseRunDate(date)
		if err != nil {
			logAndRespond(log, err, w, http.StatusBadRequest,
				ResponseRunStatus{Status: Error, Message: err.Error(), RunDate: date, Runs: []rdbms.RunLogEntry{}})
			return
		}
		entries, err := runs.ListRuns(r.Context(), d)
		if err != nil {
			logAndRespond(log, err, w, http.StatusInternalServerError,
				ResponseRunStatus{Status: Error, Message: err.Error(), RunDate: date, Runs: []rdbms.RunLogEntry{}})
			return
		}
		if len(entries) == 0 {
			w.WriteHeader(http.StatusNotFound)
			respond(log, w, ResponseRunStatus{Status: Error, Message: "no runs recorded", RunDate: h.FormatDate(d), Runs: []rdbms.RunLogEntry{}})
			return
		}
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseRunStatus{Status: Okay, RunDate: h.FormatDate(d), Runs: entries})
	}
}

// logAndRespond will log the error, write the status code and r to w.
func logAndRespond(log logger.Logger, err error, w http.ResponseWriter, code int, r interface{}) {
	log.Error(err)
	w.WriteHeader(code)
	respond(log, w, r)
}

// respond will marshal i to a string and write it to w.
func respond(log logger.Logger, w http.ResponseWriter, i interface{}) {
	j, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		log.Panic(err)
	}
	_, err = fmt.Fprint(w, string(j))
	if err != nil {
		log.Error(err)
	}
}
