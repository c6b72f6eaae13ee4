package reply

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"

	"github.com/dawnzzz/rcluster/redis"
)

// Payload is one decoded reply, or the error that ended the stream.
type Payload struct {
	Data redis.Reply
	Err  error
}

// ParseStream decodes a stream of RESP-shaped replies from reader,
// closing the returned channel when reader errors or EOFs.
func ParseStream(reader io.Reader) <-chan *Payload {
	ch := make(chan *Payload)
	go parse(reader, ch)
	return ch
}

func parse(rawReader io.Reader, ch chan<- *Payload) {
	reader := bufio.NewReader(rawReader)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			ch <- &Payload{Err: err}
			close(ch)
			return
		}
		if len(line) < 2 || line[len(line)-2] != '\r' {
			continue
		}
		line = bytes.TrimSuffix(line, []byte{'\r', '\n'})
		if len(line) == 0 {
			continue
		}

		switch line[0] {
		case '+':
			ch <- &Payload{Data: MakeStatusReply(string(line[1:]))}
		case '-':
			ch <- &Payload{Data: MakeErrReply(string(line[1:]))}
		case ':':
			v, err := strconv.ParseInt(string(line[1:]), 10, 64)
			if err != nil {
				ch <- &Payload{Err: errors.New("protocol error: illegal integer " + string(line[1:]))}
				close(ch)
				return
			}
			ch <- &Payload{Data: MakeIntReply(v)}
		case '$':
			r, err := parseBulk(line, reader)
			if err != nil {
				ch <- &Payload{Err: err}
				close(ch)
				return
			}
			ch <- &Payload{Data: r}
		case '*':
			r, err := parseArray(line, reader)
			if err != nil {
				ch <- &Payload{Err: err}
				close(ch)
				return
			}
			ch <- &Payload{Data: r}
		default:
			ch <- &Payload{Err: errors.New("protocol error: unknown reply type " + string(line[0]))}
			close(ch)
			return
		}
	}
}

func parseBulk(header []byte, reader *bufio.Reader) (*BulkReply, error) {
	n, err := strconv.ParseInt(string(header[1:]), 10, 64)
	if err != nil || n < -1 {
		return nil, errors.New("protocol error: illegal bulk length " + string(header[1:]))
	}
	if n == -1 {
		return MakeBulkReply(nil), nil
	}
	body := make([]byte, n+2)
	if _, err := io.ReadFull(reader, body); err != nil {
		return nil, err
	}
	return MakeBulkReply(body[:n]), nil
}

func parseArray(header []byte, reader *bufio.Reader) (*ArrayReply, error) {
	n, err := strconv.ParseInt(string(header[1:]), 10, 64)
	if err != nil || n < -1 {
		return nil, errors.New("protocol error: illegal array length " + string(header[1:]))
	}
	if n <= 0 {
		return MakeArrayReply(nil), nil
	}
	args := make([][]byte, 0, n)
	for i := int64(0); i < n; i++ {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return nil, err
		}
		line = bytes.TrimSuffix(line, []byte{'\r', '\n'})
		if len(line) == 0 || line[0] != '$' {
			return nil, errors.New("protocol error: expected bulk string in array")
		}
		bulk, err := parseBulk(line, reader)
		if err != nil {
			return nil, err
		}
		args = append(args, bulk.Arg)
	}
	return MakeArrayReply(args), nil
}
