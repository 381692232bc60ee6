package log

import "log/slog"

func WorkflowID[T ~string](id T) slog.Attr {
	return slog.String("workflow_id", string(id))
}

func Provider(name string) slog.Attr {
	return slog.String("provider", name)
}

func LocationKey(key string) slog.Attr {
	return slog.String("location_key", key)
}

func MutationID(id string) slog.Attr {
	return slog.String("mutation_id", id)
}

func Topic(topic string) slog.Attr {
	return slog.String("topic", topic)
}

func TaskID(id string) slog.Attr {
	return slog.String("task_id", id)
}

func URL(url string) slog.Attr {
	return slog.String("url", url)
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func ErrorString(msg string) slog.Attr {
	return slog.String("error", msg)
}

func ActionID(id string) slog.Attr {
	return slog.String("action_id", id)
}
